package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ehrlich-b/parley/internal/chat"
	"github.com/ehrlich-b/parley/internal/conversation"
)

func printReply(w io.Writer, r *chat.Reply) {
	switch r.Type {
	case chat.TypeHistory:
		fmt.Fprintln(w, r.Response)
		printRecords(w, r.History)
	case chat.TypeSummary:
		fmt.Fprintln(w, r.Response)
		if r.Summary != nil {
			printSummary(w, *r.Summary)
		}
	case chat.TypeSearch:
		fmt.Fprintln(w, r.Response)
		if len(r.SearchResults) == 0 {
			fmt.Fprintln(w, "  (no matches)")
		}
		printRecords(w, r.SearchResults)
	default:
		fmt.Fprintf(w, "Bot: %s\n", r.Response)
	}
}

func printRecords(w io.Writer, recs []conversation.Record) {
	for _, rec := range recs {
		who := "You"
		if rec.Role == conversation.RoleAssistant {
			who = "Bot"
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", rec.Timestamp.Local().Format("15:04:05"), who, oneLine(rec.Content))
	}
}

func printSummary(w io.Writer, s conversation.Summary) {
	fmt.Fprintf(w, "  session:        %s\n", s.SessionID)
	fmt.Fprintf(w, "  messages:       %s (%d user, %d assistant)\n",
		humanize.Comma(int64(s.TotalMessages)), s.UserMessages, s.AssistantMessages)
	fmt.Fprintf(w, "  duration:       %s\n", s.Duration().Round(time.Second))
	fmt.Fprintf(w, "  avg response:   %ss\n", humanize.FtoaWithDigits(s.AvgResponseTime, 3))
	if s.StartTime != nil {
		fmt.Fprintf(w, "  started:        %s (%s)\n", s.StartTime.Local().Format(time.DateTime), humanize.Time(*s.StartTime))
	}
	if s.EndTime != nil {
		fmt.Fprintf(w, "  last message:   %s (%s)\n", s.EndTime.Local().Format(time.DateTime), humanize.Time(*s.EndTime))
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) > 120 {
		return string([]rune(s)[:117]) + "..."
	}
	return s
}
