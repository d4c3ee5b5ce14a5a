package robot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-vigia/pkg/limbs"
)

// Line protocol constants.
const (
	SyncMarker = '$'
	// ModeTracking is the trailing flag the firmware expects for live control.
	ModeTracking = 1
)

// Encode renders every joint of every limb, then the mode flag:
// "$a1,a2,...,a4N,mode\n". Angles are clamped to [0, 180].
func Encode(cmds []limbs.Command, mode int) string {
	var b strings.Builder
	b.Grow(4*len(cmds)*limbs.JointsPerLimb + 4)
	b.WriteByte(SyncMarker)
	for _, c := range cmds {
		for _, a := range c {
			b.WriteString(strconv.Itoa(clampAngle(a)))
			b.WriteByte(',')
		}
	}
	b.WriteString(strconv.Itoa(mode))
	b.WriteByte('\n')
	return b.String()
}

// Decode parses a protocol line back into angles and the mode flag.
func Decode(line string) (angles []int, mode int, err error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 2 || line[0] != SyncMarker {
		return nil, 0, fmt.Errorf("missing sync marker")
	}
	fields := strings.Split(line[1:], ",")
	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, 0, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}
	angles, mode = values[:len(values)-1], values[len(values)-1]
	if len(angles)%limbs.JointsPerLimb != 0 {
		return nil, 0, fmt.Errorf("%d angles is not a whole number of limbs", len(angles))
	}
	return angles, mode, nil
}

func clampAngle(a int) int {
	if a < 0 {
		return 0
	}
	if a > 180 {
		return 180
	}
	return a
}
