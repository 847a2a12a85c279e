package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-shellwords"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

const consoleUsage = `Classroom console.

Usage:
    console show
    console title <title>
    console slide <title>
    console text <text>
    console ink [--strokes=<count>]
    console poll [--style=<style>]
    console vote <choice>
    console submit <title>
    console resync
    console quit

Options:
    --strokes=<count>    Number of strokes to add [default: 1].
    --style=<style>      yes_no, yes_no_both, abc or abcd [default: yes_no].`

// edits the local classroom from commands on stdin. Edits replicate through the session.
type console struct {
	ctx    context.Context
	cancel context.CancelFunc

	session   *present.Session
	classroom *model.ClassroomModel

	parser *docopt.Parser
}

func newConsole(ctx context.Context, cancel context.CancelFunc, session *present.Session) *console {
	return &console{
		ctx:       ctx,
		cancel:    cancel,
		session:   session,
		classroom: session.Classroom(),
		parser: &docopt.Parser{
			HelpHandler: func(err error, usage string) {
				if err != nil {
					fmt.Printf("Invalid command. Use 'help' for usage.\n")
				}
			},
		},
	}
}

func (self *console) run() {
	defer self.cancel()

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "help" {
			fmt.Println(consoleUsage)
			continue
		}

		// allow quoted titles
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Printf("Invalid command (%s).\n", err)
			continue
		}
		opts, err := self.parser.ParseArgs(consoleUsage, args, "")
		if err != nil {
			continue
		}
		if quit, _ := opts.Bool("quit"); quit {
			return
		}
		present.HandleError(func() {
			self.handle(opts)
		}, func(err error) {
			fmt.Printf("Command failed (%s).\n", err)
		})
	}
}

func (self *console) handle(opts docopt.Opts) {
	if show, _ := opts.Bool("show"); show {
		printClassroom(self.classroom)
		printSubmissionStatus(self.session.SubmissionStatus())
	} else if title, _ := opts.Bool("title"); title {
		slide, ok := self.currentSlide()
		if !ok {
			fmt.Printf("No local slide.\n")
			return
		}
		titleStr, _ := opts.String("<title>")
		slide.SetTitle(titleStr)
	} else if slide, _ := opts.Bool("slide"); slide {
		titleStr, _ := opts.String("<title>")
		self.addSlide(titleStr)
	} else if text, _ := opts.Bool("text"); text {
		textStr, _ := opts.String("<text>")
		self.addText(textStr)
	} else if ink, _ := opts.Bool("ink"); ink {
		strokeCount, err := opts.Int("--strokes")
		if err != nil {
			strokeCount = 1
		}
		self.addStrokes(strokeCount)
	} else if poll, _ := opts.Bool("poll"); poll {
		styleStr, _ := opts.String("--style")
		style, err := parseQuickPollStyle(styleStr)
		if err != nil {
			fmt.Printf("%s\n", err)
			return
		}
		self.startPoll(style)
	} else if vote, _ := opts.Bool("vote"); vote {
		choice, _ := opts.String("<choice>")
		self.vote(choice)
	} else if submit, _ := opts.Bool("submit"); submit {
		titleStr, _ := opts.String("<title>")
		self.submit(titleStr)
	} else if resync, _ := opts.Bool("resync"); resync {
		self.session.ForceUpdate(present.GroupAllParticipant)
	}
}

func (self *console) localDeck() (*model.DeckModel, bool) {
	for _, presentation := range self.classroom.Presentations().Members() {
		if presentation.Remote() {
			continue
		}
		for _, deck := range presentation.Decks().Members() {
			if !deck.Remote() {
				return deck, true
			}
		}
	}
	return nil, false
}

// the last slide of the first local deck
func (self *console) currentSlide() (*model.SlideModel, bool) {
	deck, ok := self.localDeck()
	if !ok {
		return nil, false
	}
	slides := deck.Slides().Members()
	if len(slides) == 0 {
		return nil, false
	}
	return slides[len(slides)-1], true
}

func (self *console) addSlide(title string) {
	deck, ok := self.localDeck()
	if !ok {
		publishPresentation(self.classroom, self.session.Participant(), title)
		return
	}
	slide := model.NewSlideModel(model.NewId(), model.SlideState{
		Title:  title,
		Bounds: model.Rect(0, 0, 800, 600),
		Zoom:   1,
	})
	deck.Slides().Add(slide)
	fmt.Printf("slide %s\n", slide.Id())
}

func (self *console) addText(text string) {
	slide, ok := self.currentSlide()
	if !ok {
		fmt.Printf("No local slide.\n")
		return
	}
	textSheet := model.NewTextSheetModel(
		model.NewId(),
		model.SheetState{
			Bounds:           model.Rect(20, 20, 400, 40),
			SheetDisposition: self.sheetDisposition(),
		},
		model.TextSheetState{
			Text:     text,
			Color:    model.Argb(0xFF, 0, 0, 0),
			FontSize: 18,
		},
	)
	slide.Sheets().Add(textSheet)
}

func (self *console) addStrokes(strokeCount int) {
	slide, ok := self.currentSlide()
	if !ok {
		fmt.Printf("No local slide.\n")
		return
	}
	var inkSheet *model.InkSheetModel
	for _, sheet := range slide.Sheets().Members() {
		if s, ok := sheet.(*model.InkSheetModel); ok && !s.Remote() {
			inkSheet = s
			break
		}
	}
	if inkSheet == nil {
		inkSheet = model.NewInkSheetModel(model.NewId(), model.SheetState{
			Bounds:           slide.Bounds(),
			SheetDisposition: self.sheetDisposition(),
		})
		slide.Sheets().Add(inkSheet)
	}
	for i := 0; i < strokeCount; i += 1 {
		stroke := model.NewStroke([]byte(fmt.Sprintf("stroke %d", inkSheet.Strokes().Len())))
		inkSheet.Strokes().Add(stroke)
	}
}

func (self *console) sheetDisposition() model.SheetDisposition {
	switch self.session.Participant().Role {
	case model.RoleStudent:
		return model.SheetDispositionStudent
	case model.RolePublicDisplay:
		return model.SheetDispositionPublic
	default:
		return model.SheetDispositionInstructor
	}
}

func (self *console) startPoll(style model.QuickPollStyle) {
	for _, presentation := range self.classroom.Presentations().Members() {
		if presentation.Remote() {
			continue
		}
		var slideId model.Id
		if slide, ok := self.currentSlide(); ok {
			slideId = slide.Id()
		}
		quickPoll := model.NewQuickPollModel(model.NewId(), model.QuickPollState{
			Style:   style,
			Enabled: true,
			SlideId: slideId,
		})
		presentation.QuickPolls().Add(quickPoll)
		fmt.Printf("quick poll %s %s\n", quickPoll.Id(), strings.Join(quickPoll.Snapshot().Choices, ","))
		return
	}
	fmt.Printf("No local presentation.\n")
}

// votes on the most recent enabled poll
func (self *console) vote(choice string) {
	participantId := self.session.Participant().Id
	for _, presentation := range self.classroom.Presentations().Members() {
		quickPolls := presentation.QuickPolls().Members()
		for i := len(quickPolls) - 1; 0 <= i; i -= 1 {
			quickPoll := quickPolls[i]
			if !quickPoll.Snapshot().Enabled {
				continue
			}
			if result, ok := quickPoll.ResultByOwner(participantId); ok {
				result.SetChoice(choice)
			} else {
				quickPoll.Results().Add(model.NewQuickPollResultModel(model.NewId(), model.QuickPollResultState{
					OwnerId: participantId,
					Choice:  choice,
				}))
			}
			return
		}
	}
	fmt.Printf("No open quick poll.\n")
}

func (self *console) submit(title string) {
	for _, presentation := range self.classroom.Presentations().Members() {
		for _, deck := range presentation.Decks().Members() {
			if deck.DeckDisposition() != model.DeckDispositionStudentSubmission {
				continue
			}
			submissionId := model.NewId()
			slide := model.NewSlideModel(model.NewId(), model.SlideState{
				Title:        title,
				Bounds:       model.Rect(0, 0, 800, 600),
				Zoom:         1,
				SubmissionId: submissionId,
				OwnerId:      self.session.Participant().Id,
			})
			deck.Slides().Add(slide)
			fmt.Printf("submission %s\n", submissionId)
			return
		}
	}
	fmt.Printf("No submission deck.\n")
}

func parseQuickPollStyle(styleStr string) (model.QuickPollStyle, error) {
	switch styleStr {
	case "", "yes_no":
		return model.QuickPollStyleYesNo, nil
	case "yes_no_both":
		return model.QuickPollStyleYesNoBoth, nil
	case "abc":
		return model.QuickPollStyleABC, nil
	case "abcd":
		return model.QuickPollStyleABCD, nil
	default:
		return 0, fmt.Errorf("Unknown quick poll style: %s", styleStr)
	}
}

func printSubmissionStatus(submissionStatus *model.SubmissionStatusModel) {
	for submissionId, status := range submissionStatus.Statuses() {
		fmt.Printf("submission %s %s\n", submissionId, status)
	}
}
