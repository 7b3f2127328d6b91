package modules

import "errors"

// ErrNoFaceDetected means no candidate face survived either detection pass.
// Without a face anchor no crop is possible; callers should ask for a
// clearer, front-facing photo.
var ErrNoFaceDetected = errors.New("no face detected")
