package normalize

import (
	"fmt"

	vision "google.golang.org/api/vision/v1"

	"connkit/internal/errors"
)

// BoundingBox is an axis-aligned box in image pixels.
type BoundingBox struct {
	X      int64 `json:"x"`
	Y      int64 `json:"y"`
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// BoxFromVertices converts a four-corner polygon (top-left, top-right,
// bottom-right, bottom-left) into a box.
func BoxFromVertices(vertices []*vision.Vertex) (BoundingBox, error) {
	if len(vertices) < 4 {
		return BoundingBox{}, errors.Newf(errors.KindMalformedGeometry,
			"bounding polygon has %d vertices, want 4", len(vertices))
	}
	topLeft, bottomRight := vertices[0], vertices[2]
	if topLeft == nil || bottomRight == nil {
		return BoundingBox{}, errors.New(errors.KindMalformedGeometry, "bounding polygon has empty vertices")
	}
	return BoundingBox{
		X:      topLeft.X,
		Y:      topLeft.Y,
		Width:  bottomRight.X - topLeft.X,
		Height: bottomRight.Y - topLeft.Y,
	}, nil
}

// TextDetection extracts the words found by a TEXT_DETECTION request. The
// first annotation is the full-text summary and is skipped.
func TextDetection(resp *Response) (map[string]any, map[string]any, error) {
	var batch vision.BatchAnnotateImagesResponse
	if err := Decode(resp, &batch); err != nil {
		return nil, nil, err
	}
	diag := map[string]any{RawResponseKey: string(resp.Body)}

	textFound := []string{}
	boxes := []BoundingBox{}
	if len(batch.Responses) > 0 && batch.Responses[0] != nil {
		annotations := batch.Responses[0].TextAnnotations
		for i := 1; i < len(annotations); i++ {
			a := annotations[i]
			var vertices []*vision.Vertex
			if a.BoundingPoly != nil {
				vertices = a.BoundingPoly.Vertices
			}
			box, err := BoxFromVertices(vertices)
			if err != nil {
				e, _ := errors.As(err)
				return nil, diag, e.WithDetail("annotation", i)
			}
			textFound = append(textFound, a.Description)
			boxes = append(boxes, box)
		}
	}
	diag["Words found"] = len(textFound)

	return map[string]any{
		"textFound":     textFound,
		"boundingBoxes": boxes,
	}, diag, nil
}

// VisionError detects a per-image error in a 2xx annotate response.
func VisionError(resp *Response) *errors.Error {
	var batch vision.BatchAnnotateImagesResponse
	if Decode(resp, &batch) != nil {
		return nil
	}
	for _, r := range batch.Responses {
		if r != nil && r.Error != nil && (r.Error.Code != 0 || r.Error.Message != "") {
			return errors.New(errors.KindRemote, r.Error.Message).
				WithTitle(fmt.Sprintf("Vision error %d", r.Error.Code)).
				WithStatus(resp.StatusCode)
		}
	}
	return nil
}
