package limbs

// Home pose of every limb from the bring-up console: base, shoulder, vertical, horizontal.
const (
	HomeBase       = 90
	HomeShoulder   = 60
	HomeVertical   = 45
	HomeHorizontal = 90
)

// DefaultRig returns the four-arm layout: arm1 carries the camera and follows
// the tracker; arm2 mirrors it, arm3 trails it with offsets, arm4 mirrors arm3.
func DefaultRig() []Limb {
	shoulderIdle := func(phase float64) Oscillation {
		return Oscillation{Center: HomeShoulder, Amplitude: 12, Period: 5, Phase: phase}
	}
	baseIdle := func(phase float64) Oscillation {
		return Oscillation{Center: HomeBase, Amplitude: 35, Period: 9, Phase: phase}
	}

	arm2Base := Mirror(SourcePan)
	arm2Base.Idle = baseIdle(1.6)
	arm2Shoulder := Fixed(HomeShoulder)
	arm2Shoulder.Idle = shoulderIdle(0.8)

	arm3Base := Joint{Source: SourcePan, Scale: 1, Offset: -15}
	arm3Base.Idle = baseIdle(3.1)
	arm3Shoulder := Fixed(HomeShoulder)
	arm3Shoulder.Idle = shoulderIdle(2.4)
	arm3Vertical := Joint{Source: SourceTilt, Scale: 1, Offset: 10}

	arm4Base := Joint{Source: SourcePan, Scale: -1, Offset: 195}
	arm4Base.Idle = baseIdle(4.7)
	arm4Shoulder := Fixed(HomeShoulder)
	arm4Shoulder.Idle = shoulderIdle(4.0)

	return []Limb{
		{Name: "arm1", Joints: [JointsPerLimb]Joint{
			Follow(SourcePan), Fixed(HomeShoulder), Follow(SourceTilt), Fixed(HomeHorizontal),
		}},
		{Name: "arm2", Joints: [JointsPerLimb]Joint{
			arm2Base, arm2Shoulder, Follow(SourceTilt), Fixed(HomeHorizontal),
		}},
		{Name: "arm3", Joints: [JointsPerLimb]Joint{
			arm3Base, arm3Shoulder, arm3Vertical, Fixed(HomeHorizontal),
		}},
		{Name: "arm4", Joints: [JointsPerLimb]Joint{
			arm4Base, arm4Shoulder, arm3Vertical, Fixed(HomeHorizontal),
		}},
	}
}

// HomePose returns the rest command for n limbs.
func HomePose(n int) []Command {
	cmds := make([]Command, n)
	for i := range cmds {
		cmds[i] = Command{HomeBase, HomeShoulder, HomeVertical, HomeHorizontal}
	}
	return cmds
}
