package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
)

func BenchmarkApplyAllSteps(b *testing.B) {
	src := gradientBuffer(b, 640, 360)
	params := domain.OperatorParameters{
		Brightness: 1.2,
		Contrast:   0.9,
		BlurRadius: 2,
		Sharpen:    true,
		Grayscale:  true,
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Apply(src, params); err != nil {
			b.Fatalf("apply: %v", err)
		}
	}
}

func BenchmarkResizeLanczos(b *testing.B) {
	src := gradientBuffer(b, 1920, 1080)
	resizer, err := NewResizer()
	if err != nil {
		b.Fatalf("new resizer: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resizer.Resize(context.Background(), src, 640, 360); err != nil {
			b.Fatalf("resize: %v", err)
		}
	}
}
