package devices

import (
	"context"
	"encoding/xml"
	"testing"
)

const sampleSMI = `<?xml version="1.0" ?>
<nvidia_smi_log>
	<gpu id="00000000:17:00.0">
		<product_name>NVIDIA A100-SXM4-40GB</product_name>
		<uuid>GPU-1aaa</uuid>
		<utilization>
			<gpu_util>12 %</gpu_util>
			<memory_util>3 %</memory_util>
		</utilization>
		<fb_memory_usage>
			<used>1024 MiB</used>
			<total>40960 MiB</total>
		</fb_memory_usage>
	</gpu>
	<gpu id="00000000:65:00.0">
		<product_name>NVIDIA A100-SXM4-40GB</product_name>
		<uuid>GPU-2bbb</uuid>
		<utilization>
			<gpu_util>0 %</gpu_util>
			<memory_util>0 %</memory_util>
		</utilization>
		<fb_memory_usage>
			<used>0 MiB</used>
			<total>40960 MiB</total>
		</fb_memory_usage>
	</gpu>
</nvidia_smi_log>`

// TestParseGPUs verifies the nvidia-smi XML is mapped to devices with
// sequential indices.
func TestParseGPUs(t *testing.T) {
	var smiLog nvidiaSMILog
	if err := xml.Unmarshal([]byte(sampleSMI), &smiLog); err != nil {
		t.Fatalf("Failed to unmarshal sample XML: %v", err)
	}

	gpus := parseGPUs(&smiLog)
	if len(gpus) != 2 {
		t.Fatalf("Expected 2 GPUs, got %d", len(gpus))
	}

	first := gpus[0]
	if first.Index != 0 {
		t.Errorf("Expected index 0, got %d", first.Index)
	}
	if first.Name != "NVIDIA A100-SXM4-40GB" {
		t.Errorf("Unexpected name: %s", first.Name)
	}
	if first.UUID != "GPU-1aaa" {
		t.Errorf("Unexpected UUID: %s", first.UUID)
	}
	if first.MemoryUsedMiB != 1024 {
		t.Errorf("Expected 1024 MiB used, got %f", first.MemoryUsedMiB)
	}
	if first.MemoryTotalMiB != 40960 {
		t.Errorf("Expected 40960 MiB total, got %f", first.MemoryTotalMiB)
	}
	if first.UtilizationPct != 12 {
		t.Errorf("Expected 12%% utilization, got %f", first.UtilizationPct)
	}

	if gpus[1].Index != 1 {
		t.Errorf("Expected index 1, got %d", gpus[1].Index)
	}
}

// TestParseValue covers the unit-suffixed value parser
func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"40960 MiB", 40960},
		{" 12 % ", 12},
		{"3.5", 3.5},
		{"N/A", 0},
		{"", 0},
	}

	for _, c := range cases {
		if got := parseValue(c.in); got != c.want {
			t.Errorf("parseValue(%q): expected %f, got %f", c.in, c.want, got)
		}
	}
}

// TestProberCount verifies Count runs the probe under a deadline and
// reports the enumerated device count.
func TestProberCount(t *testing.T) {
	p := NewProber()
	p.query = func(ctx context.Context) ([]byte, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("Expected the probe context to carry a deadline")
		}
		return []byte(sampleSMI), nil
	}

	n, err := p.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 devices, got %d", n)
	}
}

// TestStaticCounter verifies the fixed-size counter
func TestStaticCounter(t *testing.T) {
	n, err := Static(8).Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 8 {
		t.Errorf("Expected 8, got %d", n)
	}
}
