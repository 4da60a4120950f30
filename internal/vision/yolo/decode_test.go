package yolo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// head builds a [4+classes][anchors] tensor from per-anchor rows.
func head(classes int, anchors [][]float32) []float32 {
	ch := 4 + classes
	out := make([]float32, ch*len(anchors))
	for i, a := range anchors {
		for c := 0; c < ch; c++ {
			out[c*len(anchors)+i] = a[c]
		}
	}
	return out
}

func TestDecode(t *testing.T) {
	data := head(3, [][]float32{
		{320, 320, 64, 32, 0.1, 0.9, 0.2},   // class 1
		{100, 50, 10, 10, 0.05, 0.1, 0.2},  // below threshold
		{600, 600, 20, 40, 0.5, 0.25, 0.7}, // class 2
	})

	got, err := Decode(data, 7, 3, 2, 1.5, 0.25)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].ClassID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Equal(t, 640.0, got[0].CX)
	assert.Equal(t, 480.0, got[0].CY)
	assert.Equal(t, 128.0, got[0].W)
	assert.Equal(t, 48.0, got[0].H)
	assert.Equal(t, 576.0, got[0].Left())
	assert.Equal(t, 456.0, got[0].Top())

	assert.Equal(t, 2, got[1].ClassID)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(make([]float32, 8), 4, 2, 1, 1, 0.5)
	assert.Error(t, err)

	_, err = Decode(make([]float32, 10), 6, 2, 1, 1, 0.5)
	assert.Error(t, err)
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"cpu", Device{}, false},
		{"CPU", Device{}, false},
		{"cuda", Device{CUDA: true}, false},
		{"cuda:0", Device{CUDA: true}, false},
		{"cuda:1", Device{CUDA: true, Index: 1}, false},
		{"2", Device{CUDA: true, Index: 2}, false},
		{"mps", Device{}, true},
		{"cuda:-1", Device{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDevice(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "cuda:1", Device{CUDA: true, Index: 1}.String())
	assert.Equal(t, "cpu", Device{}.String())
}
