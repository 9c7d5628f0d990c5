package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/config"
	"vibeblog-cli/internal/display"
	"vibeblog-cli/internal/history"
	"vibeblog-cli/internal/logger"
	"vibeblog-cli/internal/task"
	"vibeblog-cli/internal/tui"
)

const version = "0.1.0"

var activeProfile string

func main() {
	args := os.Args[1:]

	// Parse global flags first (--profile)
	args = parseGlobalFlags(args)

	if err := logger.Init(); err != nil {
		display.Warn(fmt.Sprintf("debug log unavailable: %v", err))
	}
	defer logger.Close()

	// No args → launch the interactive console (default)
	if len(args) == 0 {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	// Explicit -i flag also launches the console
	if args[0] == "-i" || args[0] == "--interactive" || args[0] == "interactive" {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error

	switch args[0] {
	case "login":
		err = cmdLogin(args[1:])
	case "set":
		err = cmdSet(args[1:])
	case "config":
		err = cmdConfig()
	case "generate", "write":
		err = cmdGenerate(args[1:])
	case "tasks":
		err = cmdTasks(args[1:])
	case "cancel":
		err = cmdCancel(args[1:])
	case "history":
		err = cmdHistory(args[1:])
	case "profiles":
		err = cmdProfiles()
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("vibeblog %s\n", version)
	default:
		display.Error(fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

// ─── login ───────────────────────────────────────────────────────────────────

func cmdLogin(args []string) error {
	var token string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-t", "--token":
			if i+1 < len(args) {
				i++
				token = args[i]
			} else {
				return fmt.Errorf("--token requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: vibeblog login <server-url> [-t <token>]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  vibeblog login http://localhost:8080")
		fmt.Println("  vibeblog login https://pipeline.example.com -t my-bearer-token")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	cfg.Server = strings.TrimRight(positional[0], "/")
	if token != "" {
		cfg.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	display.Spinner("Checking the server...")

	// A dead endpoint is worth a warning but should not block saving.
	client := api.NewClient(cfg)
	_, probeErr := client.ListTasks(1)

	display.ClearLine()
	if probeErr != nil {
		display.Warn(fmt.Sprintf("Server did not respond: %v", probeErr))
	} else {
		display.Success("Server reachable")
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	display.Info("Server:", cfg.Server)
	if cfg.Style != "" {
		display.Info("Style:", cfg.Style)
	}

	pf := ""
	if activeProfile != "" {
		pf = " --profile " + activeProfile
	}

	fmt.Println()
	fmt.Printf("  %sNext:%s Run %svibeblog%s generate \"<topic>\"%s to write your first post.\n\n",
		display.Dim, display.Reset, display.Cyan, pf, display.Reset)

	return nil
}

// ─── set ────────────────────────────────────────────────────────────────────

func cmdSet(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: vibeblog set <key> <value>")
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  server        Pipeline server URL  (e.g. http://server:8080)")
		fmt.Println("  style         Default writing style")
		fmt.Println("  language      Default output language code")
		fmt.Println("  typing_speed  Draft animation speed in chars/sec (0 = default)")
		fmt.Println("  no_animation  true disables the draft animation")
		fmt.Println("  token         Bearer token for the server")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	key, value := args[0], strings.Join(args[1:], " ")

	switch key {
	case "server":
		cfg.Server = strings.TrimRight(value, "/")
	case "style":
		cfg.Style = value
	case "language":
		cfg.Language = value
	case "typing_speed":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("typing_speed needs a non-negative number, got %q", value)
		}
		cfg.TypingSpeed = n
	case "no_animation":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("no_animation needs true or false, got %q", value)
		}
		cfg.NoAnimation = b
	case "token":
		cfg.Token = value
	default:
		return fmt.Errorf("unknown config key: %s (valid: server, style, language, typing_speed, no_animation, token)", key)
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("%s set to %s", key, value))
	return nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	display.Header("VibeBlog CLI Configuration")

	display.Info("Profile:", config.ProfileName(activeProfile))

	server := cfg.Server
	if server == "" {
		server = display.Dim + "(not set)" + display.Reset
	}
	display.Info("Server:", server)

	style := cfg.Style
	if style == "" {
		style = display.Dim + "(not set)" + display.Reset
	}
	display.Info("Style:", style)

	language := cfg.Language
	if language == "" {
		language = display.Dim + "(not set)" + display.Reset
	}
	display.Info("Language:", language)

	speed := display.Dim + "(default)" + display.Reset
	if cfg.TypingSpeed > 0 {
		speed = fmt.Sprintf("%d chars/s", cfg.TypingSpeed)
	}
	display.Info("Typing speed:", speed)

	animation := "on"
	if cfg.NoAnimation {
		animation = "off"
	}
	display.Info("Animation:", animation)

	token := display.Dim + "(not set)" + display.Reset
	if cfg.Token != "" {
		end := 12
		if len(cfg.Token) < end {
			end = len(cfg.Token)
		}
		token = cfg.Token[:end] + "..."
	}
	display.Info("Token:", token)
	fmt.Println()

	return nil
}

// ─── generate ───────────────────────────────────────────────────────────────

func cmdGenerate(args []string) error {
	var style, language string
	var confirm bool
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-s", "--style":
			if i+1 < len(args) {
				i++
				style = args[i]
			} else {
				return fmt.Errorf("--style requires a value")
			}
		case "-l", "--language":
			if i+1 < len(args) {
				i++
				language = args[i]
			} else {
				return fmt.Errorf("--language requires a value")
			}
		case "-confirm", "--confirm":
			confirm = true
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: vibeblog generate [-s <style>] [-l <language>] [--confirm] <topic>")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println(`  vibeblog generate "A practical intro to Go generics"`)
		fmt.Println(`  vibeblog generate -s casual --confirm "Why SQLite is enough"`)
		return nil
	}
	topic := strings.Join(positional, " ")

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if style == "" {
		style = cfg.Style
	}
	if language == "" {
		language = cfg.Language
	}

	client := api.NewClient(cfg)
	printer := display.NewStreamPrinter()

	subscribe := func(ctx context.Context, taskID string) (task.EventSource, error) {
		return client.Subscribe(ctx, taskID)
	}
	ctrl := task.NewController(client, subscribe, printer.Hooks())
	printer.Bind(ctrl)
	ctrl.SetAutoAccept(!confirm)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println()
	display.Spinner("Creating task...")

	taskID, err := client.CreateTask(api.CreateTaskRequest{
		Topic:    topic,
		Style:    style,
		Language: language,
	})
	if err != nil {
		display.ClearLine()
		return fmt.Errorf("creating task: %w", err)
	}
	display.ClearLine()
	display.Success(fmt.Sprintf("Task created: %s", taskID))

	fmt.Printf("\n %s── ✒ VibeBlog Generation ─────────────────────────────────────────────────%s\n", display.Dim, display.Reset)
	fmt.Println()
	fmt.Printf("    %sTopic:%s  %s\n", display.Dim, display.Reset, topic)
	if style != "" {
		fmt.Printf("    %sStyle:%s  %s\n", display.Dim, display.Reset, style)
	}
	fmt.Printf("    %sTask:%s   %s\n", display.Dim, display.Reset, taskID)
	fmt.Println()
	fmt.Printf(" %s──────────────────────────────────────────────────────────────────────────%s\n\n", display.Dim, display.Reset)

	// A subscribe failure surfaces through the done hook, so the error
	// itself only goes to the debug log. The stream gets its own lifetime:
	// an interrupt cancels through the controller so the run ends cancelled
	// instead of surfacing as a transport drop.
	if err := ctrl.Start(context.Background(), taskID, topic); err != nil {
		logger.Debugf("start task: %v", err)
	}

	interrupted := ctx.Done()
	var res task.Result
wait:
	for {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Println()
			display.Warn("Interrupt received, cancelling...")
			ctrl.Cancel()
		case <-printer.Outline():
			if !confirm {
				continue
			}
			if err := confirmOutlineTerminal(ctrl); err != nil {
				display.Warn(err.Error())
			}
		case res = <-printer.Done():
			break wait
		}
	}

	saveHistory(ctrl, res)

	if res.State != task.StateComplete {
		// The printer already reported the failure
		os.Exit(1)
	}

	if res.Document != "" {
		fmt.Println()
		fmt.Println(display.RenderMarkdown(res.Document, 100))
		if len(res.Citations) > 0 {
			fmt.Printf("  %sSources:%s\n", display.Dim, display.Reset)
			for i, c := range res.Citations {
				title := c.Title
				if title == "" {
					title = c.URL
				}
				fmt.Printf("    %d. %s\n", i+1, title)
				if c.Title != "" && c.URL != "" {
					fmt.Printf("       %s%s%s\n", display.Gray, c.URL, display.Reset)
				}
			}
			fmt.Println()
		}
	}

	fmt.Printf("  %sTip:%s Run %svibeblog history show %s%s to reprint this post.\n\n",
		display.Dim, display.Reset, display.Cyan, res.TaskID, display.Reset)

	return nil
}

// confirmOutlineTerminal blocks on stdin at the outline checkpoint. The
// printer has already shown the outline panel.
func confirmOutlineTerminal(ctrl *task.Controller) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("  %sAccept the outline? [Y=accept, e=edit with a note, n=cancel]:%s ", display.Bold, display.Reset)
		line, err := reader.ReadString('\n')
		if err != nil {
			// stdin closed (piped input): fall back to accepting
			return ctrl.ConfirmOutline(api.OutlineAccept, "")
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes", "a", "accept":
			return ctrl.ConfirmOutline(api.OutlineAccept, "")
		case "e", "edit":
			fmt.Printf("  %sWhat should change?%s ", display.Bold, display.Reset)
			note, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			return ctrl.ConfirmOutline(api.OutlineEdit, strings.TrimSpace(note))
		case "n", "no", "cancel":
			ctrl.Cancel()
			return nil
		}
	}
}

// saveHistory archives a finished run, best-effort.
func saveHistory(ctrl *task.Controller, res task.Result) {
	dir, err := config.DataDir()
	if err != nil {
		logger.Warnf("history archive unavailable: %v", err)
		return
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		logger.Warnf("history archive unavailable: %v", err)
		return
	}
	defer store.Close()

	outline, _ := ctrl.OutlineView()
	if err := store.Save(history.NewRecord(ctrl.TaskView(), outline, res)); err != nil {
		logger.Warnf("archive run: %v", err)
	}
}

// ─── tasks ──────────────────────────────────────────────────────────────────

func cmdTasks(args []string) error {
	limit := 20

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n", "--limit":
			if i+1 < len(args) {
				i++
				n, err := strconv.Atoi(args[i])
				if err != nil {
					return fmt.Errorf("invalid limit: %s", args[i])
				}
				limit = n
			}
		}
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := api.NewClient(cfg)

	resp, err := client.ListTasks(limit)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	display.Header(fmt.Sprintf("Tasks (%d)", len(resp.Tasks)))

	if len(resp.Tasks) == 0 {
		display.Warn("No tasks found.")
		return nil
	}

	for _, t := range resp.Tasks {
		topic := t.Topic
		if topic == "" {
			topic = display.Dim + "(no topic)" + display.Reset
		}

		fmt.Printf("\n  %s%s%s\n", display.Bold, topic, display.Reset)
		fmt.Printf("    %sID:%s      %s\n", display.Dim, display.Reset, t.ID)
		fmt.Printf("    %sCreated:%s %s\n", display.Dim, display.Reset, display.FormatTime(t.CreateTime))
		fmt.Printf("    %sStatus:%s  %s\n", display.Dim, display.Reset, display.StateLabel(t.Status))
	}

	fmt.Println()
	fmt.Println(strings.Repeat("─", 80))
	fmt.Printf("  %sTip:%s Run %svibeblog cancel <task-id>%s to stop a running task.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

// ─── cancel ─────────────────────────────────────────────────────────────────

func cmdCancel(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: vibeblog cancel <task-id>")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := api.NewClient(cfg)

	resp, err := client.CancelTask(args[0])
	if err != nil {
		return fmt.Errorf("cancelling task: %w", err)
	}
	if resp != nil && !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "task is not running"
		}
		return fmt.Errorf("server refused: %s", reason)
	}

	display.Success(fmt.Sprintf("Cancel requested for %s", args[0]))
	return nil
}

// ─── history ────────────────────────────────────────────────────────────────

func cmdHistory(args []string) error {
	if len(args) > 0 && args[0] == "show" {
		if len(args) < 2 {
			fmt.Println("Usage: vibeblog history show <task-id>")
			return nil
		}
		return cmdHistoryShow(args[1])
	}

	dir, err := config.DataDir()
	if err != nil {
		return err
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	recs, err := store.List(20)
	if err != nil {
		return fmt.Errorf("listing archive: %w", err)
	}

	display.Header(fmt.Sprintf("Archive (%d)", len(recs)))

	if len(recs) == 0 {
		display.Warn("The archive is empty. Generate a post first.")
		return nil
	}

	for _, rec := range recs {
		title := rec.Title
		if title == "" {
			title = rec.Topic
		}

		fmt.Printf("\n  %s%s%s\n", display.Bold, title, display.Reset)
		fmt.Printf("    %sID:%s       %s\n", display.Dim, display.Reset, rec.ID)
		if !rec.FinishedAt.IsZero() {
			fmt.Printf("    %sFinished:%s %s\n", display.Dim, display.Reset, rec.FinishedAt.Local().Format("Jan 2 2006 15:04"))
		}
		fmt.Printf("    %sStatus:%s   %s\n", display.Dim, display.Reset, display.StateLabel(rec.State))
		if rec.Words > 0 {
			fmt.Printf("    %sSize:%s     %d words, %d sections\n", display.Dim, display.Reset, rec.Words, rec.Sections)
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("─", 80))
	fmt.Printf("  %sTip:%s Run %svibeblog history show <id>%s to reprint a post.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

func cmdHistoryShow(id string) error {
	dir, err := config.DataDir()
	if err != nil {
		return err
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	rec, err := store.Get(id)
	if err != nil {
		return err
	}

	if rec.Document == "" {
		display.Warn("No document was saved for that run.")
		if rec.Error != "" {
			display.Info("Error:", rec.Error)
		}
		return nil
	}

	fmt.Println()
	fmt.Println(display.RenderMarkdown(rec.Document, 100))
	fmt.Printf("  %s%s · %s%s\n\n", display.Gray, rec.ID, rec.State, display.Reset)

	return nil
}

// ─── profiles ───────────────────────────────────────────────────────────────

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func parseGlobalFlags(args []string) []string {
	var remaining []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--profile" {
			if i+1 < len(args) {
				i++
				activeProfile = args[i]
			}
			continue
		}
		remaining = append(remaining, args[i])
	}
	return remaining
}

// ─── usage ──────────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Printf(`%sVibeBlog CLI%s: multi-agent blog writer (v%s)

%sUsage:%s
  vibeblog                                           Launch the interactive console (default)
  vibeblog [--profile <name>] <command> [arguments]  Run a specific command

%sGetting Started:%s
  login <url> [-t <token>]  Point the CLI at a pipeline server
  config                    Show current configuration

%sWriting:%s
  generate|write "<topic>"  Generate a blog post (streams progress)
    -s, --style <name>        Writing style for this run
    -l, --language <code>     Output language for this run
    --confirm                 Review the outline before drafting

%sTasks:%s
  tasks                     List recent pipeline tasks
    -n, --limit <count>       Number of tasks to list (default: 20)
  cancel <task-id>          Cancel a running task

%sArchive:%s
  history                   List archived posts
  history show <id>         Reprint an archived post

%sSettings:%s
  set style <name>          Default writing style
  set language <code>       Default output language
  set typing_speed <n>      Draft animation speed (chars/sec)
  set no_animation <bool>   Disable the draft animation
  set token <token>         Bearer token for the server

%sProfiles:%s
  profiles                  List all config profiles
  --profile <name>          Use a named config profile (default: unnamed)

%sExamples:%s
  vibeblog                                           # Start the interactive console
  vibeblog login http://localhost:8080
  vibeblog generate "A practical intro to Go generics"
  vibeblog generate -s casual --confirm "Why SQLite is enough"
  vibeblog history show 9f8e7d6c
  vibeblog --profile work tasks

`, display.Bold, display.Reset, version,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset)
}
