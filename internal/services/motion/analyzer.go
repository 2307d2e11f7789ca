package motion

import (
	"image"

	"gocv.io/x/gocv"
)

const blurSize = 21

// Analysis is the outcome of comparing one frame against the background.
type Analysis struct {
	DeltaMean    float64
	DeltaMax     float64
	ContourCount int
	MaxArea      float64
	Motion       bool
}

// Prepare converts a BGR frame to the blurred grayscale form used for
// differencing. The caller owns the returned Mat.
func Prepare(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}

// Compare differences two prepared frames. A frame qualifies as motion when
// any external contour of the dilated threshold mask covers at least minArea.
func Compare(background, current gocv.Mat, threshold, minArea int) Analysis {
	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(background, current, &delta)

	var a Analysis
	a.DeltaMean = delta.Mean().Val1
	_, maxVal, _, _ := gocv.MinMaxLoc(delta)
	a.DeltaMax = float64(maxVal)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(delta, &mask, float32(threshold), 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(mask, &dilated, kernel)
	gocv.Dilate(dilated, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	a.ContourCount = contours.Size()
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > a.MaxArea {
			a.MaxArea = area
		}
		if area >= float64(minArea) {
			a.Motion = true
		}
	}
	return a
}
