package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/banshee-data/camera.report/internal/pipeline"
)

var boxColor = color.RGBA{0, 255, 0, 255}

// Annotate draws each detection and a "label: 0.93" caption onto img.
// Track ids are appended to the caption when present.
func Annotate(img *gocv.Mat, dets []pipeline.Detection, names pipeline.Labeler) {
	for _, d := range dets {
		x1, y1 := int(d.CX-d.W/2), int(d.CY-d.H/2)
		x2, y2 := int(d.CX+d.W/2), int(d.CY+d.H/2)
		gocv.Rectangle(img, image.Rect(x1, y1, x2, y2), boxColor, 2)

		caption := fmt.Sprintf("%s: %.2f", names.Label(d.ClassID), d.Confidence)
		if d.HasID {
			caption = fmt.Sprintf("#%d %s", d.TrackID, caption)
		}
		gocv.PutText(img, caption, image.Pt(x1, y1-10), gocv.FontHersheySimplex, 0.5, boxColor, 2)
	}
}

// Window shows annotated frames until the user presses q.
type Window struct {
	w *gocv.Window
}

// NewWindow opens a display window.
func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

// Show displays img and reports whether the user asked to quit.
func (w *Window) Show(img gocv.Mat) (quit bool) {
	w.w.IMShow(img)
	return w.w.WaitKey(1)&0xFF == 'q'
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.w.Close()
}
