package gpucore

import (
	"errors"
	"testing"
)

func TestValidateBuffer(t *testing.T) {
	storage := BufferUsageStorage | BufferUsageCopySrc
	tests := []struct {
		name    string
		desc    BufferDesc
		initial []byte
		ok      bool
	}{
		{"raw", BufferDesc{Size: 16, Usage: storage, Misc: BufferMiscAllowRawViews}, nil, true},
		{"structured", BufferDesc{Size: 24, Usage: storage, Misc: BufferMiscStructured, Stride: 8}, nil, true},
		{"staging", BufferDesc{Size: 16, Usage: BufferUsageMapRead | BufferUsageCopyDst}, nil, true},
		{"with data", BufferDesc{Size: 4, Usage: storage, Misc: BufferMiscAllowRawViews}, make([]byte, 4), true},
		{"zero size", BufferDesc{Usage: storage, Misc: BufferMiscAllowRawViews}, nil, false},
		{"short data", BufferDesc{Size: 8, Usage: storage, Misc: BufferMiscAllowRawViews}, make([]byte, 4), false},
		{"mappable storage", BufferDesc{Size: 16, Usage: BufferUsageMapRead | BufferUsageStorage}, nil, false},
		{"conflict", BufferDesc{Size: 16, Usage: storage, Misc: BufferMiscAllowRawViews | BufferMiscStructured, Stride: 4}, nil, false},
		{"zero stride", BufferDesc{Size: 16, Usage: storage, Misc: BufferMiscStructured}, nil, false},
		{"partial record", BufferDesc{Size: 10, Usage: storage, Misc: BufferMiscStructured, Stride: 4}, nil, false},
		{"unaligned raw", BufferDesc{Size: 6, Usage: storage, Misc: BufferMiscAllowRawViews}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuffer(&tt.desc, tt.initial)
			if tt.ok && err != nil {
				t.Fatalf("ValidateBuffer() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("ValidateBuffer() = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestViewStride(t *testing.T) {
	raw := BufferDesc{Size: 36, Usage: BufferUsageStorage, Misc: BufferMiscAllowRawViews}
	structured := BufferDesc{Size: 36, Usage: BufferUsageStorage, Misc: BufferMiscStructured, Stride: 12}
	staging := BufferDesc{Size: 36, Usage: BufferUsageMapRead | BufferUsageCopyDst}

	tests := []struct {
		name   string
		buffer *BufferDesc
		view   ViewDesc
		stride uint32
	}{
		{"raw", &raw, ViewDesc{Format: ViewFormatR32Typeless, NumElements: 9, Flags: ViewFlagRaw}, 4},
		{"raw tail", &raw, ViewDesc{Format: ViewFormatR32Typeless, FirstElement: 8, NumElements: 1, Flags: ViewFlagRaw}, 4},
		{"structured", &structured, ViewDesc{Format: ViewFormatUnknown, NumElements: 3}, 12},
		{"raw without flag", &raw, ViewDesc{Format: ViewFormatR32Typeless, NumElements: 9}, 0},
		{"raw unknown format", &raw, ViewDesc{Format: ViewFormatUnknown, NumElements: 9, Flags: ViewFlagRaw}, 0},
		{"structured typed", &structured, ViewDesc{Format: ViewFormatR32Typeless, NumElements: 3}, 0},
		{"structured raw flag", &structured, ViewDesc{Format: ViewFormatUnknown, NumElements: 3, Flags: ViewFlagRaw}, 0},
		{"empty", &raw, ViewDesc{Format: ViewFormatR32Typeless, Flags: ViewFlagRaw}, 0},
		{"overrun", &structured, ViewDesc{Format: ViewFormatUnknown, FirstElement: 1, NumElements: 3}, 0},
		{"staging", &staging, ViewDesc{Format: ViewFormatR32Typeless, NumElements: 9, Flags: ViewFlagRaw}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stride, err := ViewStride(tt.buffer, &tt.view)
			if tt.stride == 0 {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("ViewStride() error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ViewStride() = %v", err)
			}
			if stride != tt.stride {
				t.Errorf("stride = %d, want %d", stride, tt.stride)
			}
		})
	}
}

func TestBufferMiscLayout(t *testing.T) {
	tests := []struct {
		misc BufferMisc
		want Layout
	}{
		{0, LayoutNone},
		{BufferMiscAllowRawViews, LayoutRaw},
		{BufferMiscStructured, LayoutStructured},
		{BufferMiscAllowRawViews | BufferMiscStructured, LayoutConflict},
	}
	for _, tt := range tests {
		if got := tt.misc.Layout(); got != tt.want {
			t.Errorf("BufferMisc(%d).Layout() = %s, want %s", tt.misc, got, tt.want)
		}
	}
}

func TestBindingsEmpty(t *testing.T) {
	var b Bindings
	if !b.Empty() {
		t.Error("zero Bindings not empty")
	}
	b.Views[3] = 7
	if b.Empty() {
		t.Error("Bindings with a view reported empty")
	}
	b = Bindings{Shader: 1}
	if b.Empty() {
		t.Error("Bindings with a shader reported empty")
	}
}

func TestShaderBinaryDefined(t *testing.T) {
	bin := &ShaderBinary{Defines: []Define{{Name: "SPLIT_INOUT", Value: "1"}}}
	if !bin.Defined("SPLIT_INOUT") {
		t.Error(`Defined("SPLIT_INOUT") = false`)
	}
	if bin.Defined("USE_STRUCTURED_BUFFERS") {
		t.Error(`Defined("USE_STRUCTURED_BUFFERS") = true`)
	}
}
