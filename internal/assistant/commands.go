package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AIAssist/internal/prompt"
)

// typeCommands maps slash commands onto prompt types
var typeCommands = map[string]prompt.Type{
	"/continue":  prompt.TypeContinue,
	"/summarize": prompt.TypeSummarize,
	"/simplify":  prompt.TypeSimplify,
	"/correct":   prompt.TypeCorrectSpelling,
	"/title":     prompt.TypeGenerateTitle,
	"/longer":    prompt.TypeMakeLonger,
	"/shorter":   prompt.TypeMakeShorter,
}

// handleCommand handles slash commands
func (a *Assistant) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	if typ, ok := typeCommands[parts[0]]; ok {
		return false, a.request(ctx, typ, a.currentTone())
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/ask":
		if len(parts) > 1 {
			a.controller.SetUserPrompt(strings.TrimSpace(strings.TrimPrefix(cmd, parts[0])))
		}
		return false, a.request(ctx, prompt.TypeUserPrompt, a.currentTone())

	case "/tone":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /tone <tone> (%s)", joinTones())
		}
		tone := prompt.Tone(parts[1])
		if !tone.Valid() {
			return false, fmt.Errorf("unknown tone: %s", parts[1])
		}
		a.mu.Lock()
		a.tone = tone
		a.mu.Unlock()
		return false, a.request(ctx, prompt.TypeChangeTone, tone)

	case "/run":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /run <type> (%s)", joinTypes())
		}
		typ, ok := prompt.ParseType(parts[1])
		if !ok {
			return false, fmt.Errorf("unknown prompt type: %s", parts[1])
		}
		return false, a.request(ctx, typ, a.currentTone())

	case "/retry":
		return false, a.retry(ctx)

	case "/clear":
		if err := a.post.SetBlockContent(a.clientID, ""); err != nil {
			return false, err
		}
		a.controller.SetContent("")
		a.mu.Lock()
		a.printed = ""
		a.mu.Unlock()
		fmt.Fprintln(a.out, "Cleared the assistant block.")
		return false, nil

	case "/status":
		snap := a.controller.Snapshot()
		fmt.Fprintf(a.out, "Phase:    %s\n", snap.Phase)
		fmt.Fprintf(a.out, "Type:     %s\n", snap.Type)
		fmt.Fprintf(a.out, "Tone:     %s\n", a.currentTone())
		fmt.Fprintf(a.out, "Title:    %s\n", snap.PostTitle)
		fmt.Fprintf(a.out, "Retry:    %t\n", snap.Retryable)
		if snap.ErrorMessage != "" {
			fmt.Fprintf(a.out, "Error:    %s\n", snap.ErrorMessage)
		}
		if snap.LastPrompt != "" {
			count, err := a.store.CountByPrompt(ctx, snap.LastPrompt)
			if err != nil {
				return false, fmt.Errorf("failed to count prompt: %w", err)
			}
			fmt.Fprintf(a.out, "Sent:     %d time(s)\n", count)
		}
		if snap.LoadingCategories {
			fmt.Fprintln(a.out, "Categories and tags are still loading.")
		}
		return false, nil

	case "/context":
		snap := a.controller.Snapshot()
		fmt.Fprintf(a.out, "Content before the assistant block:\n%s\n", snap.ContentBefore)
		return false, nil

	case "/history":
		if len(parts) > 1 {
			return false, a.showSession(ctx, parts[1])
		}
		sessions, err := a.store.Recent(ctx, a.post.PostID(), 10)
		if err != nil {
			return false, fmt.Errorf("failed to load history: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(a.out, "No suggestions yet.")
			return false, nil
		}
		for i, sess := range sessions {
			fmt.Fprintf(a.out, "%d. %s %s %s (%s, %s)\n", i+1, sess.ID, sess.StartTime.Format("15:04:05"), sess.Type, sess.Phase, sess.Duration().Round(time.Millisecond))
		}
		return false, nil

	case "/save":
		if err := a.post.Save(a.config.PostPath); err != nil {
			return false, err
		}
		fmt.Fprintf(a.out, "Saved %s\n", a.config.PostPath)
		return false, nil

	case "/help":
		fmt.Fprintln(a.out, "Available commands:")
		fmt.Fprintln(a.out, "  /continue            - Continue writing the post")
		fmt.Fprintln(a.out, "  /summarize           - Summarize the post or the last suggestion")
		fmt.Fprintln(a.out, "  /simplify            - Simplify the last suggestion")
		fmt.Fprintln(a.out, "  /correct             - Fix spelling and grammar")
		fmt.Fprintln(a.out, "  /title               - Suggest a title")
		fmt.Fprintln(a.out, "  /longer, /shorter    - Expand or shorten the last suggestion")
		fmt.Fprintf(a.out, "  /tone <tone>         - Rewrite with a tone (%s)\n", joinTones())
		fmt.Fprintln(a.out, "  /ask <text>          - Free-text request (plain input does the same)")
		fmt.Fprintf(a.out, "  /run <type>          - Request any prompt type (%s)\n", joinTypes())
		fmt.Fprintln(a.out, "  /retry               - Retry the last failed request")
		fmt.Fprintln(a.out, "  /clear               - Empty the assistant block")
		fmt.Fprintln(a.out, "  /status, /context    - Show assistant state or the text it sees")
		fmt.Fprintln(a.out, "  /history [id]        - Show recent suggestions, or one in full")
		fmt.Fprintln(a.out, "  /save                - Write the post back to disk")
		fmt.Fprintln(a.out, "  /quit, /exit         - Exit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (a *Assistant) currentTone() prompt.Tone {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tone
}

// showSession prints one stored session in full
func (a *Assistant) showSession(ctx context.Context, id string) error {
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Type:     %s\n", sess.Type)
	fmt.Fprintf(a.out, "Tone:     %s\n", sess.Tone)
	fmt.Fprintf(a.out, "Phase:    %s\n", sess.Phase)
	fmt.Fprintf(a.out, "Retry:    %t\n", sess.Retry)
	if sess.Error != "" {
		fmt.Fprintf(a.out, "Error:    %s\n", sess.Error)
	}
	fmt.Fprintf(a.out, "Prompt:\n%s\n", sess.Prompt)
	fmt.Fprintf(a.out, "Content:\n%s\n", sess.Content)
	return nil
}

func joinTypes() string {
	names := make([]string, len(prompt.Types))
	for i, typ := range prompt.Types {
		names[i] = string(typ)
	}
	return strings.Join(names, "|")
}

func joinTones() string {
	names := make([]string, len(prompt.Tones))
	for i, tone := range prompt.Tones {
		names[i] = string(tone)
	}
	return strings.Join(names, "|")
}
