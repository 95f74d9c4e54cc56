package overlay

import (
	"math"

	"courtside/internal/media"
	"courtside/internal/pose"
)

// RGB is a packed 24-bit colour.
type RGB [3]byte

// PlayerColors are assigned by player index.
var PlayerColors = []RGB{
	{0, 255, 0},
	{255, 140, 0},
}

// Bones lists the skeleton segments drawn between landmarks.
var Bones = [][2]pose.Landmark{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftShoulder, pose.LeftElbow},
	{pose.LeftElbow, pose.LeftWrist},
	{pose.RightShoulder, pose.RightElbow},
	{pose.RightElbow, pose.RightWrist},
	{pose.LeftShoulder, pose.LeftHip},
	{pose.RightShoulder, pose.RightHip},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftHip, pose.LeftKnee},
	{pose.LeftKnee, pose.LeftAnkle},
	{pose.RightHip, pose.RightKnee},
	{pose.RightKnee, pose.RightAnkle},
	{pose.LeftAnkle, pose.LeftHeel},
	{pose.RightAnkle, pose.RightHeel},
	{pose.Nose, pose.LeftShoulder},
	{pose.Nose, pose.RightShoulder},
}

const (
	jointRadius   = 3
	boneThickness = 1
)

// Draw returns a copy of frame's pixels with every non-missed pose painted
// on. Keypoints below minConfidence are left out.
func Draw(frame media.Frame, poses []pose.PoseFrame, minConfidence float64) []byte {
	c := canvas{w: frame.Width, h: frame.Height, pix: make([]byte, len(frame.Pixels))}
	copy(c.pix, frame.Pixels)
	if len(c.pix) != c.w*c.h*3 {
		return c.pix
	}
	for _, pf := range poses {
		if pf.Miss {
			continue
		}
		color := PlayerColors[pf.Player%len(PlayerColors)]
		for _, bone := range Bones {
			a, okA := pf.Lookup(bone[0], minConfidence)
			b, okB := pf.Lookup(bone[1], minConfidence)
			if okA && okB {
				ax, ay := c.point(a)
				bx, by := c.point(b)
				c.line(ax, ay, bx, by, color)
			}
		}
		for _, kp := range pf.Keypoints {
			if kp.Confidence < minConfidence {
				continue
			}
			x, y := c.point(kp)
			c.disc(x, y, jointRadius, color)
		}
	}
	return c.pix
}

type canvas struct {
	w, h int
	pix  []byte
}

func (c canvas) point(kp pose.Keypoint) (int, int) {
	return int(math.Round(kp.X * float64(c.w-1))), int(math.Round(kp.Y * float64(c.h-1)))
}

func (c canvas) set(x, y int, color RGB) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	i := (y*c.w + x) * 3
	c.pix[i], c.pix[i+1], c.pix[i+2] = color[0], color[1], color[2]
}

func (c canvas) disc(cx, cy, r int, color RGB) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.set(cx+dx, cy+dy, color)
			}
		}
	}
}

// line draws a Bresenham segment widened by boneThickness on each side.
func (c canvas) line(x0, y0, x1, y1 int, color RGB) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy
	for {
		c.disc(x0, y0, boneThickness, color)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
