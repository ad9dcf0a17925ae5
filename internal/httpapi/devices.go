package httpapi

import (
	"context"

	"github.com/Marnel8/tracesys-sub003/internal/capture"
	"github.com/Marnel8/tracesys-sub003/internal/faceclient"
)

// RemoteDevices builds capture devices backed by the student's own
// hardware: the client pushes coordinates and frames over the API, the
// face gate delegates to the detection service.
type RemoteDevices struct {
	Faces *faceclient.Client
}

func (d RemoteDevices) Locator() capture.Locator { return &capture.RemoteLocator{} }
func (d RemoteDevices) Camera() capture.Camera   { return &capture.RemoteCamera{} }
func (d RemoteDevices) Gate() capture.FaceGate   { return faceGate{d.Faces} }

type faceGate struct {
	faces *faceclient.Client
}

func (g faceGate) Load(ctx context.Context) error {
	return g.faces.LoadModel(ctx)
}

func (g faceGate) Detect(ctx context.Context, frame []byte) (bool, error) {
	res, err := g.faces.Detect(ctx, frame)
	if err != nil {
		return false, err
	}
	return res.Present(), nil
}
