package robot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-vigia/pkg/limbs"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmds []limbs.Command
		want string
	}{
		{
			name: "home pose of four limbs",
			cmds: limbs.HomePose(4),
			want: "$90,60,45,90,90,60,45,90,90,60,45,90,90,60,45,90,1\n",
		},
		{
			name: "out of range angles are clamped",
			cmds: []limbs.Command{{-5, 0, 180, 999}},
			want: "$0,0,180,180,1\n",
		},
		{
			name: "no limbs",
			cmds: nil,
			want: "$1\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Encode(tc.cmds, ModeTracking); got != tc.want {
				t.Errorf("Encode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	angles, mode, err := Decode("$10,20,30,40,1\n")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff([]int{10, 20, 30, 40}, angles); diff != "" {
		t.Errorf("angles mismatch (-want +got):\n%s", diff)
	}
	if mode != 1 {
		t.Errorf("mode = %d, want 1", mode)
	}

	for _, bad := range []string{"", "10,20,30,40,1\n", "$10,x,30,40,1\n", "$10,20,30,1\n"} {
		if _, _, err := Decode(bad); err == nil {
			t.Errorf("Decode(%q) expected error", bad)
		}
	}
}
