package pose

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageBytes bounds a single worker message; a 4K RGB24 frame is ~25 MiB.
const maxMessageBytes = 64 << 20

// workerRequest is sent to the pose worker for each frame.
type workerRequest struct {
	Seq        int     `msgpack:"seq"`
	FrameData  []byte  `msgpack:"frame_data"`
	Width      int     `msgpack:"width"`
	Height     int     `msgpack:"height"`
	Format     string  `msgpack:"format"`
	MaxPersons int     `msgpack:"max_persons"`
	Timestamp  float64 `msgpack:"timestamp"`
}

// workerResponse is the pose worker's reply.
type workerResponse struct {
	Seq   int          `msgpack:"seq"`
	Poses []workerPose `msgpack:"poses"`
	Error string       `msgpack:"error"`
}

type workerPose struct {
	// BBox is [x, y, w, h] normalized; may be empty.
	BBox  []float64 `msgpack:"bbox"`
	Score float64   `msgpack:"score"`
	// Keypoints holds one [x, y, confidence] triple per landmark in index order.
	Keypoints [][]float64 `msgpack:"keypoints"`
}

func writeMessage(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode msgpack: %w", err)
	}
	if len(payload) > maxMessageBytes {
		return fmt.Errorf("message of %d bytes exceeds limit", len(payload))
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxMessageBytes {
		return fmt.Errorf("message of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode msgpack: %w", err)
	}
	return nil
}

func (p workerPose) detection() Detection {
	det := Detection{Score: p.Score}
	if len(p.BBox) == 4 {
		det.Box = Box{X: p.BBox[0], Y: p.BBox[1], W: p.BBox[2], H: p.BBox[3]}
	}
	det.Keypoints = make([]Keypoint, 0, len(p.Keypoints))
	for i, triple := range p.Keypoints {
		if i >= LandmarkCount || len(triple) < 2 {
			continue
		}
		kp := Keypoint{Landmark: Landmark(i), X: triple[0], Y: triple[1], Confidence: 1}
		if len(triple) >= 3 {
			kp.Confidence = triple[2]
		}
		det.Keypoints = append(det.Keypoints, kp)
	}
	return det
}
