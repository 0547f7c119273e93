package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"playhead/internal/config"
	"playhead/internal/engine"
	"playhead/internal/playlist"
	"playhead/internal/session"
	"playhead/internal/settings"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file-or-folder>",
		Short: "Start an interactive playback session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve target path: %w", err)
			}
			info, err := os.Stat(target)
			if err != nil {
				return fmt.Errorf("inspect target %q: %w", target, err)
			}
			if !info.IsDir() && !playlist.IsVideoFile(target) {
				return fmt.Errorf("%s is not a recognized video file", target)
			}
			return ctx.withStore(func(cfg *config.Config, store *settings.Store) error {
				return runPlaySession(cmd, ctx, cfg, store, target, info.IsDir())
			})
		},
	}
	return cmd
}

func runPlaySession(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, store *settings.Store, target string, isFolder bool) error {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another playhead session is already running (lock %s)", cfg.LockPath())
	}
	defer lock.Unlock()

	logger, closeLogger, err := ctx.newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	eng, err := engine.NewMPV(cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctrl := session.New(eng, store, logger, session.WithStateListener(newTransitionPrinter(out)))
	defer ctrl.Close()

	if isFolder {
		err = ctrl.OpenFolder(target)
	} else {
		err = ctrl.Open(target)
	}
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, "Session started; type 'help' for commands, 'quit' to exit.")
	return runControlLoop(signalCtx.Done(), cmd.InOrStdin(), out, ctrl)
}

// newTransitionPrinter reports state and file transitions, suppressing the
// per-tick status callbacks that carry no change.
func newTransitionPrinter(out io.Writer) func(session.Status) {
	var lastState session.State
	var lastFile string
	return func(st session.Status) {
		if st.State == lastState && st.File == lastFile {
			return
		}
		lastState, lastFile = st.State, st.File
		switch st.State {
		case session.StateLoading:
			fmt.Fprintf(out, "loading %s\n", st.File)
		case session.StatePlaying:
			if st.PlaylistSize > 0 {
				fmt.Fprintf(out, "playing %s [%d/%d]\n", st.File, st.PlaylistIndex+1, st.PlaylistSize)
			} else {
				fmt.Fprintf(out, "playing %s\n", st.File)
			}
		case session.StatePaused:
			fmt.Fprintln(out, "paused")
		case session.StateEnded:
			fmt.Fprintln(out, "playback ended")
		case session.StateIdle:
			fmt.Fprintln(out, "stopped")
		}
	}
}

func runControlLoop(done <-chan struct{}, in io.Reader, out io.Writer, ctrl *session.Controller) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := dispatchControl(out, ctrl, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func dispatchControl(out io.Writer, ctrl *session.Controller, line string) (bool, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "quit", "q", "exit":
		return true, nil
	case "help", "?":
		printControlHelp(out)
		return false, nil
	case "pause", "p":
		return false, ctrl.TogglePause()
	case "next", "n":
		return false, ctrl.Next()
	case "prev":
		return false, ctrl.Previous()
	case "jump":
		index, err := requireInt(args, "jump <index>")
		if err != nil {
			return false, err
		}
		// The listing is 1-based; the playlist is 0-based.
		return false, ctrl.Jump(index - 1)
	case "seek":
		target, err := requireFloat(args, "seek <seconds>")
		if err != nil {
			return false, err
		}
		return false, ctrl.Seek(target)
	case "fwd", "f":
		return false, ctrl.SeekForward()
	case "rew", "r":
		return false, ctrl.SeekBackward()
	case "replay":
		return false, ctrl.Replay()
	case "speed":
		speed, err := requireFloat(args, "speed <multiplier>")
		if err != nil {
			return false, err
		}
		return false, ctrl.SetSpeed(speed)
	case "step":
		step, err := requireInt(args, "step <seconds>")
		if err != nil {
			return false, err
		}
		return false, ctrl.SetSeekStep(step)
	case "intro":
		seconds, err := requireInt(args, "intro <seconds>")
		if err != nil {
			return false, err
		}
		return false, ctrl.SetSkipIntro(seconds)
	case "outro":
		seconds, err := requireInt(args, "outro <seconds>")
		if err != nil {
			return false, err
		}
		return false, ctrl.SetSkipOutro(seconds)
	case "vol":
		volume, err := requireInt(args, "vol <0-100>")
		if err != nil {
			return false, err
		}
		return false, ctrl.SetVolume(volume)
	case "mute", "m":
		return false, ctrl.ToggleMute()
	case "audio":
		return false, handleTrackCommand(out, args, ctrl.AudioTracks, ctrl.SelectAudioTrack, "audio")
	case "subs":
		return false, handleSubtitleCommand(out, args, ctrl)
	case "stop":
		return false, ctrl.Stop()
	case "status":
		printSessionStatus(out, ctrl.Status())
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", verb)
	}
}

func handleTrackCommand(out io.Writer, args []string, list func() ([]engine.Track, error), selectTrack func(int64) error, label string) error {
	if len(args) == 0 {
		tracks, err := list()
		if err != nil {
			return err
		}
		printTracks(out, tracks, label)
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid track id %q", args[0])
	}
	return selectTrack(id)
}

func handleSubtitleCommand(out io.Writer, args []string, ctrl *session.Controller) error {
	if len(args) > 0 && strings.EqualFold(args[0], "off") {
		return ctrl.SelectSubtitleTrack(0)
	}
	return handleTrackCommand(out, args, ctrl.SubtitleTracks, ctrl.SelectSubtitleTrack, "subtitle")
}

func printTracks(out io.Writer, tracks []engine.Track, label string) {
	if len(tracks) == 0 {
		fmt.Fprintf(out, "no %s tracks\n", label)
		return
	}
	for _, track := range tracks {
		marker := " "
		if track.Selected {
			marker = "*"
		}
		title := track.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(out, "%s %d  %s  %s\n", marker, track.ID, title, track.Lang)
	}
}

func printSessionStatus(out io.Writer, st session.Status) {
	fmt.Fprintf(out, "state:    %s\n", st.State)
	if st.File != "" {
		fmt.Fprintf(out, "file:     %s\n", st.File)
	}
	if st.PlaylistSize > 0 {
		fmt.Fprintf(out, "playlist: %d/%d in %s\n", st.PlaylistIndex+1, st.PlaylistSize, st.Folder)
	}
	if st.Duration > 0 {
		pct := st.Position / st.Duration * 100
		fmt.Fprintf(out, "position: %s / %s (%.1f%%)\n", formatClock(st.Position), formatClock(st.Duration), pct)
	}
	fmt.Fprintf(out, "speed:    %.2fx  step: %ds  volume: %d  muted: %s\n",
		st.Speed, st.SeekStep, st.Volume, yesNo(st.Muted))
	fmt.Fprintf(out, "skip:     intro %ds, outro %ds\n", st.SkipIntro, st.SkipOutro)
}

func printControlHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  pause            toggle pause
  next / prev      move through the playlist
  jump <n>         jump to playlist entry n
  seek <seconds>   seek to an absolute position
  fwd / rew        seek by the configured step
  replay           restart past the intro
  speed <x>        playback speed (0.25-3.0)
  step <seconds>   relative seek step (1-300)
  intro <seconds>  skip-intro for this folder (0-600)
  outro <seconds>  skip-outro for this folder (0-600)
  vol <0-100>      volume
  mute             toggle mute
  audio [id]       list or select audio tracks
  subs [id|off]    list or select subtitle tracks
  status           show session status
  stop             stop playback
  quit             end the session
`)
}

func requireInt(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return value, nil
}

func requireFloat(args []string, usage string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return value, nil
}

func formatClock(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
