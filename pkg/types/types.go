package types

import (
	"fmt"
	"image"
)

// Box represents an axis-aligned bounding box in pixel coordinates
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box (never negative)
func (b Box) Width() int {
	if b.X2 < b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box (never negative)
func (b Box) Height() int {
	if b.Y2 < b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

// Rect converts the box to an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// BoxFromRect converts an image.Rectangle to a Box
func BoxFromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Detection is one candidate food region reported by the primary detector
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassLabel string  `json:"class_name"`
}

// Source tells which path produced a fused item
type Source string

const (
	SourceLocal     Source = "local"
	SourceSecondary Source = "secondary"
	SourceGrid      Source = "grid"
)

// Identification is the secondary identifier's guess for one crop
type Identification struct {
	Name string `json:"name"`
}

// Quantity is a portion-size estimate for one item
type Quantity struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FusedItem is one entry of the final item list
type FusedItem struct {
	Box             Box       `json:"box"`
	Source          Source    `json:"source"`
	LocalConfidence float64   `json:"local_confidence"`
	Code            string    `json:"code"`
	DisplayName     string    `json:"display_name"`
	Quantity        *Quantity `json:"quantity,omitempty"`
}

// Strategy names the path that produced the final item list
type Strategy string

const (
	StrategyLocal Strategy = "local"
	StrategyGrid  Strategy = "grid"
)

// AnalysisResult is the outcome of one analysis call
type AnalysisResult struct {
	Success  bool        `json:"success"`
	Items    []FusedItem `json:"items"`
	Message  string      `json:"message,omitempty"`
	Strategy Strategy    `json:"strategy,omitempty"`
}
