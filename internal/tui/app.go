package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/tui/keys"
	"github.com/matheus3301/wachat/internal/tui/model"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageSearch        = "search"
	pageHelp          = "help"
)

// tick redraws time-dependent widgets such as the clock and flash expiry.
const tick = time.Second

// Options configures the TUI shell.
type Options struct {
	Session string
	Server  string
}

// App is the main TUI application shell.
type App struct {
	app     *tview.Application
	theme   *ui.Theme
	vm      *model.ViewModel
	opts    Options
	started time.Time

	pages       *ui.Pages
	components  map[string]ui.Page
	registry    *keys.Registry
	root        *tview.Flex
	logo        *ui.Logo
	sessionInfo *ui.SessionInfo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	prompt      *ui.Prompt
	flashBar    *ui.FlashBar
	statusBar   *views.StatusBar

	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.ConversationInfo
	searchV  *views.SearchView
	help     *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, opts Options) *App {
	theme := ui.DefaultTheme()
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		vm:          vm,
		opts:        opts,
		started:     time.Now(),
		pages:       ui.NewPages(),
		registry:    keys.NewRegistry(),
		logo:        ui.NewLogo(theme),
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		prompt:      ui.NewPrompt(theme),
		flashBar:    ui.NewFlashBar(theme),
		statusBar:   views.NewStatusBar(),
		convList:    views.NewConversationList(theme),
		thread:      views.NewMessageThread(theme),
		details:     views.NewConversationInfo(theme),
		searchV:     views.NewSearchView(theme),
		help:        views.NewHelpView(theme),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.components = map[string]ui.Page{
		pageConversations: a.convList,
		pageThread:        a.thread,
		pageDetails:       a.details,
		pageSearch:        a.searchV,
		pageHelp:          a.help,
	}

	a.statusBar.SetSession(opts.Session)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.Bind(keys.Global, keys.Binding{Key: tcell.KeyEscape, Description: "Back", Handler: a.back})
	r.Bind(keys.Global, keys.Binding{Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) }})
	r.Bind(keys.Global, keys.Binding{Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.push(pageHelp) }})
	r.Bind(keys.Global, keys.Binding{Key: tcell.KeyRune, Rune: 'q', Description: "Back",
		Handler: a.back})

	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyEnter, Description: "Open"})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: '/', Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) }})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: 's', Description: "Search",
		Handler: a.showSearch})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: 'r', Description: "Retry failed",
		Handler: a.retryFailed})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.app.Stop})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: 'j',
		Handler: func() { a.moveSelection(1) }})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: 'k',
		Handler: func() { a.moveSelection(-1) }})
	r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: '0', Description: "All",
		Handler: a.convList.ClearFilter})
	for n := 1; n <= 9; n++ {
		r.Bind(pageConversations, keys.Binding{Key: tcell.KeyRune, Rune: rune('0' + n), Description: "Jump",
			Handler: func() {
				if waID := a.convList.ConversationByIndex(n); waID != "" {
					a.openConversation(waID)
				}
			}})
	}

	r.Bind(pageThread, keys.Binding{Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) }})
	r.Bind(pageThread, keys.Binding{Key: tcell.KeyRune, Rune: 'd', Description: "Details",
		Handler: a.showDetails})
	r.Bind(pageThread, keys.Binding{Key: tcell.KeyRune, Rune: 'r', Description: "Retry failed",
		Handler: a.retryFailed})

	r.Bind(pageSearch, keys.Binding{Key: tcell.KeyEnter, Description: "Search/Open"})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, _ int) {
		if waID := a.convList.ConversationByIndex(row); waID != "" {
			a.openConversation(waID)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.Flash.SendFailed(err)
			}
		}()
	})

	a.searchV.SetOnQuery(a.runSearch)
	a.searchV.Results().SetSelectedFunc(func(_, _ int) {
		if waID, _ := a.searchV.SelectedResult(); waID != "" {
			a.openConversation(waID)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			cmd, err := ParseCommand(text)
			if err != nil {
				a.vm.Flash.Warn(err.Error())
				return
			}
			a.execute(cmd)
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCompletions(CompleteCommand)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(ui.CrumbsFor(stack, a.components))
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.sessionInfo, 32, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 22, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.Reset(pageConversations)
	a.app.SetRoot(a.root, true)
	a.app.SetFocus(a.convList)
	a.app.SetInputCapture(a.capture)
}

func (a *App) capture(event *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if focused == a.prompt.InputField {
		return event
	}

	// Text inputs keep every key except Esc, which leaves the input.
	if input, ok := focused.(*tview.InputField); ok {
		if event.Key() != tcell.KeyEscape {
			return event
		}
		switch input {
		case a.thread.Composer():
			a.app.SetFocus(a.thread.Messages())
		case a.searchV.Input():
			a.app.SetFocus(a.searchV.Results())
		}
		return nil
	}

	if a.registry.Handle(a.pages.Current(), event) {
		return nil
	}
	return event
}

func (a *App) push(page string) {
	if a.pages.Push(page) {
		a.focusCurrent()
	}
}

// back pops the page stack. At the root it clears the conversation filter.
func (a *App) back() {
	if a.pages.Pop() == "" {
		a.convList.ClearFilter()
		return
	}
	a.focusCurrent()
	a.render()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.searchV.Input())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) moveSelection(delta int) {
	row, _ := a.convList.GetSelection()
	row += delta
	if row < 1 || row >= a.convList.GetRowCount() {
		return
	}
	a.convList.Select(row, 0)
}

// execute runs a parsed ":" command.
func (a *App) execute(cmd Command) {
	switch cmd.Kind {
	case CmdSearch:
		a.showSearch()
		if cmd.Args != "" {
			a.searchV.Input().SetText(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case CmdChat:
		conv, ok := findConversation(a.vm.Conversations(), cmd.Args)
		if !ok {
			a.vm.Flash.Warn(fmt.Sprintf("No conversation matches %q", cmd.Args))
			return
		}
		a.openConversation(conv.WaID)
	case CmdRetry:
		a.retryFailed()
	case CmdReconnect:
		go func() {
			if err := a.vm.Reconnect(a.ctx); err != nil {
				a.vm.Flash.Offline(err)
			}
		}()
	case CmdRefresh:
		go func() {
			if err := a.vm.Refresh(a.ctx); err != nil {
				a.vm.Flash.Err(fmt.Errorf("refresh: %w", err))
				return
			}
			a.vm.Flash.Info("Refreshed")
		}()
	case CmdHelp:
		a.push(pageHelp)
	case CmdQuit:
		a.app.Stop()
	}
}

// findConversation matches an exact wa_id first, then a case-insensitive
// substring of the contact name.
func findConversation(convs []reconcile.Conversation, query string) (reconcile.Conversation, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return reconcile.Conversation{}, false
	}
	for _, c := range convs {
		if c.WaID == query {
			return c, true
		}
	}
	q := strings.ToLower(query)
	for _, c := range convs {
		if strings.Contains(strings.ToLower(c.UserName), q) {
			return c, true
		}
	}
	return reconcile.Conversation{}, false
}

func (a *App) openConversation(waID string) {
	go func() {
		if err := a.vm.Open(a.ctx, waID); err != nil {
			a.vm.Flash.Err(fmt.Errorf("load failed: %w", err))
			return
		}
		name := waID
		if c, ok := a.vm.Conversation(waID); ok && c.UserName != "" && c.UserName != reconcile.UnknownUser {
			name = c.UserName
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetConversation(waID, name)
			a.thread.Update(a.vm.Messages())
			a.push(pageThread)
		})
	}()
}

func (a *App) showDetails() {
	waID := a.vm.ActiveWaID()
	conv, ok := a.vm.Conversation(waID)
	if !ok {
		return
	}
	a.details.Update(conv, a.failedIn(waID))
	a.push(pageDetails)
}

func (a *App) failedIn(waID string) int {
	n := 0
	for _, f := range a.vm.Failures() {
		if f.WaID == waID {
			n++
		}
	}
	return n
}

func (a *App) showSearch() {
	a.push(pageSearch)
}

func (a *App) runSearch(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	go func() {
		results, err := a.vm.Search(a.ctx, query)
		if err != nil {
			a.vm.Flash.Err(fmt.Errorf("search failed: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.searchV.Update(results)
			a.app.SetFocus(a.searchV.Results())
		})
	}()
}

func (a *App) retryFailed() {
	go func() {
		if len(a.vm.Failures()) == 0 {
			a.vm.Flash.Resent(0)
			return
		}
		a.vm.Flash.Resent(a.vm.RetryFailed(a.ctx))
	}()
}

// render copies view model state into the widgets. Must run on the UI
// goroutine.
func (a *App) render() {
	convs := a.vm.Conversations()
	a.convList.Update(convs)
	if a.pages.Current() == pageThread {
		a.thread.Update(a.vm.Messages())
	}

	failed := len(a.vm.Failures())
	state := a.vm.State()
	a.statusBar.SetState(state)
	a.logo.SetState(state)
	a.statusBar.SetFailed(failed)

	messages := 0
	for _, c := range convs {
		messages += c.MessageCount
	}
	a.sessionInfo.Update(&ui.SessionData{
		Session:       a.opts.Session,
		Server:        a.opts.Server,
		State:         string(state),
		Conversations: len(convs),
		Messages:      messages,
		Failed:        failed,
		Uptime:        time.Since(a.started),
	})
	a.flashBar.Update(a.vm.Flash.GetMessage())
	a.crumbs.Update(ui.CrumbsFor(a.pages.Stack(), a.components))
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-a.vm.Flash.Watch():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		if err := a.vm.PopErr(); err != nil {
			a.vm.Flash.SendFailed(err)
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	go func() {
		if err := a.vm.Start(a.ctx); err != nil {
			a.vm.Flash.Err(fmt.Errorf("load conversations: %w", err))
		}
	}()
	go a.refreshLoop()

	a.render()
	err := a.app.Run()
	a.cancel()
	a.vm.Stop()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
