// servo-pose sends a fixed pose to the servo board for bring-up and calibration.
//
//	servo-pose -port /dev/ttyUSB0 -pose 90,60,45,90
//	servo-pose -limbs 4 -pose 90,60,45,90,120,60,45,90,60,60,55,90,75,60,55,90
//	servo-pose -line '$90,60,45,90,120,60,45,90,1'
//
// -line replays a protocol line as logged by the rig (link last_line).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-vigia/internal/config"
	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/robot"
)

func main() {
	port := flag.String("port", config.SerialPort(config.DefaultSerialPort), "Servo board serial port")
	baud := flag.Int("baud", config.BaudRate(config.DefaultBaudRate), "Baud rate")
	n := flag.Int("limbs", len(limbs.DefaultRig()), "Number of limbs on the board")
	pose := flag.String("pose", "", "Joint angles: 4 values for every limb, or 4 per limb (default home pose)")
	line := flag.String("line", "", "Protocol line to replay; overrides -pose and -limbs")
	channels := flag.Int("channels", robot.DefaultConfig().Channels, "Servo outputs on the board; 0 skips the check")
	repeat := flag.Int("repeat", 10, "Times to send the pose")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between sends")
	flag.Parse()

	log.Init("info")
	logger := log.Component("servo-pose")

	cfg := robot.DefaultConfig()
	cfg.Port, cfg.BaudRate, cfg.Channels = *port, *baud, *channels

	var cmds []limbs.Command
	var err error
	if *line != "" {
		cmds, cfg.Mode, err = parseLine(*line)
	} else {
		cmds, err = parsePose(*pose, *n)
	}
	if err != nil {
		logger.Error("invalid pose", "error", err)
		os.Exit(2)
	}

	link := robot.Open(cfg, robot.OpenSerial)
	defer link.Close()

	logger.Info("sending pose", "line", strings.TrimSpace(robot.Encode(cmds, cfg.Mode)), "simulated", link.Simulated())
	for i := 0; i < *repeat; i++ {
		if err := link.Send(cmds); err != nil {
			logger.Error("send failed", "error", err)
			os.Exit(1)
		}
		time.Sleep(*interval)
	}
	st := link.Stats()
	logger.Info("done", "sent", st.Sent, "errors", st.Errors)
}

// parseLine decodes a protocol line into commands and its mode flag.
func parseLine(line string) ([]limbs.Command, int, error) {
	angles, mode, err := robot.Decode(strings.TrimSpace(line) + "\n")
	if err != nil {
		return nil, 0, err
	}
	if len(angles) == 0 {
		return nil, 0, fmt.Errorf("line carries no angles")
	}
	cmds := make([]limbs.Command, len(angles)/limbs.JointsPerLimb)
	for i := range cmds {
		for j := range cmds[i] {
			a := angles[i*limbs.JointsPerLimb+j]
			if a < 0 || a > 180 {
				return nil, 0, fmt.Errorf("angle %d: %d outside 0-180", i*limbs.JointsPerLimb+j+1, a)
			}
			cmds[i][j] = a
		}
	}
	return cmds, mode, nil
}

// parsePose builds one command per limb. Four values apply to every limb.
func parsePose(s string, n int) ([]limbs.Command, error) {
	if n <= 0 {
		return nil, fmt.Errorf("limbs must be positive")
	}
	if strings.TrimSpace(s) == "" {
		return limbs.HomePose(n), nil
	}

	fields := strings.Split(s, ",")
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("angle %d: %w", i+1, err)
		}
		if v < 0 || v > 180 {
			return nil, fmt.Errorf("angle %d: %d outside 0-180", i+1, v)
		}
		vals[i] = v
	}

	switch len(vals) {
	case limbs.JointsPerLimb:
		cmds := make([]limbs.Command, n)
		for i := range cmds {
			copy(cmds[i][:], vals)
		}
		return cmds, nil
	case limbs.JointsPerLimb * n:
		cmds := make([]limbs.Command, n)
		for i := range cmds {
			copy(cmds[i][:], vals[i*limbs.JointsPerLimb:])
		}
		return cmds, nil
	default:
		return nil, fmt.Errorf("got %d angles, want %d or %d", len(vals), limbs.JointsPerLimb, limbs.JointsPerLimb*n)
	}
}
