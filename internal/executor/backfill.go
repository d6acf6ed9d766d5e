package executor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/j-helland/warp/internal/corelog"
	"github.com/j-helland/warp/internal/werrors"
)

// ChildBuildCommand builds the argv for the per-pipe build binary a
// backfill spawns one process per trajectory step for. binary is typically
// the path to the calling project's own executable re-invoked with the
// child-build flags, so crashes in one pipe's action never take down the
// pipes queued behind it. configPath, if non-empty, points at a parameter
// override file the child should merge over the pipe's own config files.
func ChildBuildCommand(binary, homeDir, sessionID, target, configPath string) *exec.Cmd {
	args := []string{"--home", homeDir, "--session-id", sessionID, "--target", target}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Backfill runs trajectory -- the ordered gap pipes a staleness analysis
// produced -- one child process per pipe, via newCmd. It halts at the first
// failing pipe rather than continuing down the trajectory, matching the
// original backfill's "halt on exception" behavior: a pipe built on stale
// ancestors is worse than a pipe left unbuilt.
func Backfill(trajectory []string, newCmd func(target string) *exec.Cmd, log corelog.Logger) error {
	if len(trajectory) == 0 {
		log.Infof("all relevant ancestors are up to date, nothing to do")
		return nil
	}
	log.Infof("build trajectory: %s", strings.Join(trajectory, " -> "))

	bar := pb.New(len(trajectory))
	bar.ShowPercent = false
	bar.ShowSpeed = false
	bar.SetMaxWidth(80)
	bar.Start()
	defer bar.Finish()

	for i, name := range trajectory {
		cmd := newCmd(name)
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "\nhalting build trajectory at pipe %q\n", name)
			return errors.Wrapf(werrors.BuildTrajectoryHalted, "pipe %q failed during backfill: %v", name, err)
		}
		bar.Set(i + 1).Postfix(" [" + name + "] ")
	}
	return nil
}
