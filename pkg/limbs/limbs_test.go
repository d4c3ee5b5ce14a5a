package limbs

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-vigia/pkg/tracking"
)

func newDefault(t *testing.T) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(DefaultRig())
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return c
}

func TestCoordinate_Tracking(t *testing.T) {
	c := newDefault(t)
	st := tracking.State{Mode: tracking.Tracking, CurrentPan: 100.4, CurrentTilt: 50.6}

	got := c.Coordinate(st, 12.3)
	want := []Command{
		{100, 60, 51, 90},
		{80, 60, 51, 90},
		{85, 60, 61, 90},
		{95, 60, 61, 90},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Coordinate() mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinate_SearchingPrimaryFollowsState(t *testing.T) {
	c := newDefault(t)
	st := tracking.State{Mode: tracking.Searching, CurrentPan: 120, CurrentTilt: 50}

	for _, phase := range []float64{0, 1.3, 7.9} {
		cmds := c.Coordinate(st, phase)
		if cmds[0][0] != 120 || cmds[0][2] != 50 {
			t.Errorf("phase %.1f: primary limb %v does not follow state", phase, cmds[0])
		}
	}
}

func TestCoordinate_SearchingLimbsNotInLockstep(t *testing.T) {
	c := newDefault(t)
	st := tracking.State{Mode: tracking.Searching, CurrentPan: 90, CurrentTilt: 50}

	cmds := c.Coordinate(st, 2.0)
	if cmds[1][0] == cmds[2][0] && cmds[2][0] == cmds[3][0] {
		t.Errorf("Dependent bases move in lockstep: %v", cmds)
	}

	// Idle joints follow their oscillation, not the mirrored pan
	rig := DefaultRig()
	want := Quantize(rig[1].Joints[0].Idle.At(2.0))
	if cmds[1][0] != want {
		t.Errorf("arm2 base = %d, want oscillation value %d", cmds[1][0], want)
	}
	// Joints without an oscillation keep their mapping
	if cmds[1][2] != 50 {
		t.Errorf("arm2 vertical = %d, want 50", cmds[1][2])
	}
}

func TestCoordinate_LostRecentUsesMapping(t *testing.T) {
	c := newDefault(t)
	st := tracking.State{Mode: tracking.LostRecent, CurrentPan: 70, CurrentTilt: 40}

	cmds := c.Coordinate(st, 3.3)
	if cmds[1][0] != 110 {
		t.Errorf("Expected mirrored base 110 while lost-recent, got %d", cmds[1][0])
	}
}

func TestCoordinate_OutputsInRange(t *testing.T) {
	limbs := []Limb{{Name: "wild", Joints: [JointsPerLimb]Joint{
		{Source: SourcePan, Scale: 3, Offset: -100},
		{Source: SourceTilt, Scale: -5, Offset: 50},
		Fixed(400),
		Fixed(-30),
	}}}
	c, err := NewCoordinator(limbs)
	if err != nil {
		t.Fatal(err)
	}

	for pan := 0.0; pan <= 180; pan += 7.5 {
		for _, cmd := range c.Coordinate(tracking.State{CurrentPan: pan, CurrentTilt: 180 - pan}, 0) {
			for k, v := range cmd {
				if v < 0 || v > 180 {
					t.Fatalf("pan %.1f joint %d: %d out of range", pan, k, v)
				}
			}
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{89.5, 90},
		{89.49, 89},
		{-3, 0},
		{181.2, 180},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		if got := Quantize(tc.in); got != tc.want {
			t.Errorf("Quantize(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewCoordinator_Rejects(t *testing.T) {
	if _, err := NewCoordinator(nil); err == nil {
		t.Error("Expected error for empty limb set")
	}

	bad := DefaultRig()
	bad[2].Joints[1].Source = "elbow"
	if _, err := NewCoordinator(bad); err == nil {
		t.Error("Expected error for unknown source")
	}

	bad = DefaultRig()
	bad[1].Joints[0].Idle.Period = 0
	if _, err := NewCoordinator(bad); err == nil {
		t.Error("Expected error for idle oscillation without period")
	}
}

func TestFlattenAndHome(t *testing.T) {
	got := Flatten(HomePose(2))
	want := []int{90, 60, 45, 90, 90, 60, 45, 90}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flatten(HomePose) mismatch (-want +got):\n%s", diff)
	}
}
