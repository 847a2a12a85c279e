package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/term"

	"github.com/docopt/docopt-go"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/diag"
	"github.com/bringyour/classroom/present/model"
)

const PresentCtlVersion = "0.0.1"

const DefaultHubUrl = "ws://127.0.0.1:7480/hub"
const DefaultSigningKey = "classroom"

const MaxFrameFileByteCount = 16 * 1024 * 1024

func main() {
	usage := fmt.Sprintf(
		`Classroom presentation control.

The default hub url is:
    hub_url: %s

Usage:
    presentctl serve [--port=<port>]
        [--diag=<diag_file>] [--pcap=<pcap_file>] [--frames=<frame_file>]
    presentctl token --role=<role> --name=<name> [--key=<key>]
    presentctl join [--hub_url=<hub_url>] [--token=<token>]
        [--presentation=<presentation_name>]
        [--duration=<duration>] [--console]
        [--diag=<diag_file>] [--pcap=<pcap_file>] [--frames=<frame_file>]
    presentctl decode <frame_file>
    presentctl diag <diag_file>
    presentctl pcap <pcap_file>

Options:
    -h --help                             Show this screen.
    --version                             Show version.
    -p --port=<port>                      Listen port [default: 7480].
    --diag=<diag_file>                    Write a diagnostic log.
    --pcap=<pcap_file>                    Write a pcap trace of frames.
    --frames=<frame_file>                 Write sent and received frames for decode.
    --role=<role>                         instructor, student or public.
    --name=<name>                         Participant display name.
    --key=<key>                           Token signing key.
    --hub_url=<hub_url>
    --token=<token>                       Participant token. Prompted if missing.
    --presentation=<presentation_name>    Publish a presentation with one deck and slide.
    --duration=<duration>                 Leave after this long, e.g. 30s.
    --console                             Edit the classroom from stdin. Type 'help' for commands.`,
		DefaultHubUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], PresentCtlVersion)
	if err != nil {
		panic(err)
	}

	if serve_, _ := opts.Bool("serve"); serve_ {
		serve(opts)
	} else if token_, _ := opts.Bool("token"); token_ {
		token(opts)
	} else if join_, _ := opts.Bool("join"); join_ {
		join(opts)
	} else if decode_, _ := opts.Bool("decode"); decode_ {
		decode(opts)
	} else if diag_, _ := opts.Bool("diag"); diag_ {
		summarizeDiag(opts)
	} else if pcap_, _ := opts.Bool("pcap"); pcap_ {
		summarizePcap(opts)
	}
}

// the tracer for the optional --diag, --pcap and --frames outputs. The returned function flushes and closes them.
func tracer(opts docopt.Opts, participantId model.Id) (present.MessageTracer, func()) {
	tracers := []present.MessageTracer{present.NewGlogTracer()}
	closes := []func(){}

	if diagPath, err := opts.String("--diag"); err == nil && diagPath != "" {
		f, err := os.Create(diagPath)
		if err != nil {
			panic(err)
		}
		log, err := diag.NewLog(f, participantId)
		if err != nil {
			panic(err)
		}
		tracers = append(tracers, log)
		closes = append(closes, func() {
			log.Flush()
			f.Close()
		})
	}
	if pcapPath, err := opts.String("--pcap"); err == nil && pcapPath != "" {
		f, err := os.Create(pcapPath)
		if err != nil {
			panic(err)
		}
		pcapTrace, err := diag.NewPcapTrace(f)
		if err != nil {
			panic(err)
		}
		tracers = append(tracers, pcapTrace)
		closes = append(closes, func() {
			f.Close()
		})
	}

	if framesPath, err := opts.String("--frames"); err == nil && framesPath != "" {
		f, err := os.Create(framesPath)
		if err != nil {
			panic(err)
		}
		frameTrace := diag.NewFrameTrace(f)
		tracers = append(tracers, frameTrace)
		closes = append(closes, func() {
			frameTrace.Flush()
			f.Close()
		})
	}

	return present.MultiTracer(tracers...), func() {
		for _, c := range closes {
			c()
		}
	}
}

func serve(opts docopt.Opts) {
	port, _ := opts.Int("--port")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	relayTracer, closeTracer := tracer(opts, model.Id{})
	defer closeTracer()

	relay := present.NewRelayWithDefaults(ctx, relayTracer)
	defer relay.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: newHubRouter(ctx, relay),
	}

	fmt.Printf("Hub %s on *:%d\n", PresentCtlVersion, port)
	fmt.Printf("relay_id: %s\n", relay.RelayId())

	go func() {
		defer cancel()
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("hub error: %s\n", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

func token(opts docopt.Opts) {
	roleStr, _ := opts.String("--role")
	name, _ := opts.String("--name")
	key, err := opts.String("--key")
	if err != nil || key == "" {
		key = DefaultSigningKey
	}

	role, err := model.ParseRole(roleStr)
	if err != nil {
		fmt.Printf("Invalid role (%s).\n", err)
		os.Exit(1)
	}

	participant := model.NewParticipant(role, name)
	tokenStr, err := present.NewParticipantToken(participant, []byte(key))
	if err != nil {
		panic(err)
	}
	fmt.Printf("participant_id: %s\n", participant.Id)
	fmt.Printf("%s\n", tokenStr)
}

func join(opts docopt.Opts) {
	hubUrl, err := opts.String("--hub_url")
	if err != nil || hubUrl == "" {
		hubUrl = DefaultHubUrl
	}

	tokenStr, err := opts.String("--token")
	if err != nil || tokenStr == "" {
		fmt.Print("Enter token: ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			panic(err)
		}
		tokenStr = string(tokenBytes)
		fmt.Printf("\n")
	}

	participant, err := present.ParseParticipantTokenUnverified(tokenStr)
	if err != nil {
		fmt.Printf("Invalid token (%s).\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	if durationStr, err := opts.String("--duration"); err == nil && durationStr != "" {
		duration, err := time.ParseDuration(durationStr)
		if err != nil {
			fmt.Printf("Invalid duration (%s).\n", err)
			os.Exit(1)
		}
		var durationCancel context.CancelFunc
		ctx, durationCancel = context.WithTimeout(ctx, duration)
		defer durationCancel()
	}

	sessionTracer, closeTracer := tracer(opts, participant.Id)
	defer closeTracer()

	classroom := model.NewClassroomModel()
	session := present.NewSessionWithDefaults(ctx, participant, classroom, sessionTracer)
	defer session.Close()

	transport := present.NewWebSocketTransportWithDefaults(ctx, hubUrl, tokenStr, session)
	defer transport.Close()

	fmt.Printf("participant: %s %s\n", participant, participant.HumanName)

	if presentationName, err := opts.String("--presentation"); err == nil && presentationName != "" {
		publishPresentation(classroom, participant, presentationName)
	}

	if console_, _ := opts.Bool("--console"); console_ {
		var consoleCancel context.CancelFunc
		ctx, consoleCancel = context.WithCancel(ctx)
		go newConsole(ctx, consoleCancel, session).run()
	}

	<-ctx.Done()

	session.Flush(time.Second)
	printClassroom(classroom)
}

func publishPresentation(classroom *model.ClassroomModel, participant model.Participant, presentationName string) {
	presentation := model.NewPresentationModel(model.NewId(), model.PresentationState{
		HumanName: presentationName,
		OwnerId:   participant.Id,
	})
	deck := model.NewDeckModel(model.NewId(), model.DeckState{
		HumanName:       presentationName,
		DeckDisposition: model.DeckDispositionNormal,
		BackgroundColor: model.Argb(0xFF, 0xFF, 0xFF, 0xFF),
	})
	slide := model.NewSlideModel(model.NewId(), model.SlideState{
		Title:  "1",
		Bounds: model.Rect(0, 0, 800, 600),
		Zoom:   1,
	})
	deck.Slides().Add(slide)
	submissionDeck := model.NewDeckModel(model.NewId(), model.DeckState{
		HumanName:       "Submissions",
		DeckDisposition: model.DeckDispositionStudentSubmission,
		BackgroundColor: model.Argb(0xFF, 0xFF, 0xFF, 0xFF),
	})
	presentation.Decks().Add(deck)
	presentation.Decks().Add(submissionDeck)
	classroom.Presentations().Add(presentation)
}

func printClassroom(classroom *model.ClassroomModel) {
	for _, presentation := range classroom.Presentations().Members() {
		fmt.Printf("presentation %s %q remote=%t\n", presentation.Id(), presentation.HumanName(), presentation.Remote())
		for _, deck := range presentation.Decks().Members() {
			fmt.Printf("  deck %s %q\n", deck.Id(), deck.HumanName())
			for _, slide := range deck.Slides().Members() {
				fmt.Printf("    slide %s %q %s sheets=%d\n", slide.Id(), slide.Title(), slide.Bounds(), slide.Sheets().Len())
			}
		}
		for _, quickPoll := range presentation.QuickPolls().Members() {
			tally := quickPoll.Tally()
			choices := maps.Keys(tally)
			slices.Sort(choices)
			fmt.Printf("  quick poll %s\n", quickPoll.Id())
			for _, choice := range choices {
				fmt.Printf("    %s: %d\n", choice, tally[choice])
			}
		}
	}
}

func decode(opts docopt.Opts) {
	path, _ := opts.String("<frame_file>")

	f, err := os.Open(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for frameIndex := 0; ; frameIndex += 1 {
		frameBytes, err := present.ReadDelimitedFrame(r, MaxFrameFileByteCount)
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			fmt.Printf("frame %d: %s\n", frameIndex, err)
			return
		}
		messages, treeErrs, err := present.DecodeFrame(frameBytes)
		fmt.Printf("frame %d: %d bytes, %d trees\n", frameIndex, len(frameBytes), len(messages))
		for _, message := range messages {
			fmt.Printf("  tree priority=%s bridge_priority=%s\n", message.Priority(), message.BridgePriority())
			printTree(message, "    ")
		}
		for _, treeErr := range treeErrs {
			fmt.Printf("  bad tree: %s\n", treeErr)
		}
		if err != nil {
			fmt.Printf("  frame error: %s\n", err)
		}
	}
}

func printTree(message *present.Message, indent string) {
	depths := map[*present.Message]int{}
	message.Walk(func(m *present.Message, group present.Group) {
		depth := 0
		if m.Parent != nil {
			depth = depths[m.Parent] + 1
		}
		depths[m] = depth
		fmt.Printf("%s%*s%s %s group=%s\n", indent, 2*depth, "", m.ClassTag(), m.TargetId, group)
	})
}

func summarizeDiag(opts docopt.Opts) {
	path, _ := opts.String("<diag_file>")

	f, err := os.Open(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	summary, err := diag.Summarize(f)
	if err != nil && summary == nil {
		fmt.Printf("Invalid diagnostic log (%s).\n", err)
		os.Exit(1)
	}

	header := summary.Header
	if header.ParticipantId != nil {
		fmt.Printf("participant_id: %s\n", *header.ParticipantId)
	}
	fmt.Printf("machine: %s\n", header.MachineName)
	fmt.Printf("user: %s\n", header.UserName)
	fmt.Printf("start: %s\n", header.Time.Format(time.RFC3339))
	fmt.Printf("latency: count=%d mean=%s max=%s\n", summary.LatencyCount, summary.LatencyMean, summary.LatencyMax)
	fmt.Printf("clock skew: mean=%s\n", summary.ClockSkewMean)
	fmt.Printf("sent: %d trees %d bytes\n", summary.SentCount, summary.SentBytes)
	fmt.Printf("received: %d trees %d bytes\n", summary.ReceivedCount, summary.ReceivedBytes)
	printTagCounts(summary.LeafTagCounts)
	if err != nil {
		fmt.Printf("read error: %s\n", err)
	}
}

func summarizePcap(opts docopt.Opts) {
	path, _ := opts.String("<pcap_file>")

	f, err := os.Open(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	summary, err := diag.SummarizePcap(f)
	if err != nil && summary == nil {
		fmt.Printf("Invalid pcap (%s).\n", err)
		os.Exit(1)
	}

	fmt.Printf("frames: sent=%d received=%d truncated=%d\n", summary.SentFrameCount, summary.ReceivedFrameCount, summary.TruncatedCount)
	fmt.Printf("trees: %d bad=%d\n", summary.TreeCount, summary.BadTreeCount)
	printTagCounts(summary.LeafTagCounts)
	if err != nil {
		fmt.Printf("read error: %s\n", err)
	}
}

func printTagCounts(tagCounts map[string]int) {
	tags := maps.Keys(tagCounts)
	slices.Sort(tags)
	for _, tag := range tags {
		fmt.Printf("  %s: %d\n", tag, tagCounts[tag])
	}
}
