package gatherer

import "github.com/willoughbyrm/lighthouse/internal/model"

// ErrUnknownPhase is returned by Invoke for a phase outside the lifecycle.
var ErrUnknownPhase = model.ErrUnknownPhase
