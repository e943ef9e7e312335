package wizard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/auth"
	"github.com/ForsunJay/TGTEST/internal/config"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
	dwizard "github.com/ForsunJay/TGTEST/internal/domain/wizard"
	"github.com/ForsunJay/TGTEST/internal/session"
)

// Input is one raw user input delivered to the wizard
type Input struct {
	Text         string
	Document     []byte
	DocumentName string
}

// Reply is the logical prompt the wizard hands back to the transport,
// with an optional set of selectable options
type Reply struct {
	Text    string
	Options []string
}

// Machine drives a user's session through the ordered collection steps,
// validating every input before advancing. All session access runs under
// the store's per-user lock.
type Machine struct {
	catalog    config.CatalogConfig
	maxRetries int
	sessions   *session.Store
	authorizer *auth.Authorizer
	requests   port.RequestRepository
	documents  port.DocumentStore
	logger     *zap.Logger
}

// NewMachine creates a wizard machine
func NewMachine(
	cfg *config.Config,
	sessions *session.Store,
	authorizer *auth.Authorizer,
	requests port.RequestRepository,
	documents port.DocumentStore,
	logger *zap.Logger,
) *Machine {
	return &Machine{
		catalog:    cfg.Catalog,
		maxRetries: cfg.Wizard.MaxRetries,
		sessions:   sessions,
		authorizer: authorizer,
		requests:   requests,
		documents:  documents,
		logger:     logger,
	}
}

// Active reports whether the user has a live wizard session
func (m *Machine) Active(userID int64) bool {
	active := false
	_ = m.sessions.Do(userID, func(h *session.Handle) error {
		active = h.Current() != nil
		return nil
	})
	return active
}

// Start begins a new wizard session for the user, atomically replacing
// any session already live.
func (m *Machine) Start(ctx context.Context, user *entity.User) (Reply, error) {
	if !m.authorizer.Allowed(user.TelegramID, auth.PermissionCreate, auth.ResourceContext{}) {
		return Reply{Text: "You are not allowed to create requests."}, nil
	}

	var reply Reply
	err := m.sessions.Do(user.TelegramID, func(h *session.Handle) error {
		sess := h.StartNew()
		reply = m.prompt(sess)
		return nil
	})
	return reply, err
}

// Cancel discards the user's session, if any
func (m *Machine) Cancel(userID int64) Reply {
	_ = m.sessions.Do(userID, func(h *session.Handle) error {
		h.Clear()
		return nil
	})
	return Reply{Text: "Request creation cancelled."}
}

// HandleInput feeds one input into the user's session. Input arriving
// after a session idled out starts a fresh session at the first step.
func (m *Machine) HandleInput(ctx context.Context, user *entity.User, in Input) (Reply, error) {
	var reply Reply
	err := m.sessions.Do(user.TelegramID, func(h *session.Handle) error {
		sess := h.Current()
		if sess == nil {
			if !m.authorizer.Allowed(user.TelegramID, auth.PermissionCreate, auth.ResourceContext{}) {
				reply = Reply{Text: "You are not allowed to create requests."}
				return nil
			}
			sess = h.StartNew()
			reply = m.prompt(sess)
			return nil
		}

		var err error
		reply, err = m.step(ctx, h, sess, user, in)
		return err
	})
	return reply, err
}

// step consumes one input for the session's current step
func (m *Machine) step(ctx context.Context, h *session.Handle, sess *session.Session, user *entity.User, in Input) (Reply, error) {
	command := strings.ToLower(strings.TrimSpace(in.Text))

	switch command {
	case "/cancel", "cancel":
		h.Clear()
		return Reply{Text: "Request creation cancelled."}, nil
	case "back", "/back":
		if sess.Step != dwizard.StepSelectProject {
			sess.Step = sess.Step.Prev()
		}
		return m.prompt(sess), nil
	case "skip", "/skip":
		if sess.Step.IsOptional() {
			sess.Step = sess.Step.Next()
			sess.Retries = 0
			return m.prompt(sess), nil
		}
	}

	switch sess.Step {
	case dwizard.StepSelectProject:
		key, ok := matchKeyed(in.Text, m.catalog.Projects)
		if !ok {
			return m.fail(h, sess, invalidf("unknown project %q", strings.TrimSpace(in.Text)))
		}
		sess.Draft.Project = key

	case dwizard.StepSelectCurrency:
		currency, ok := matchCurrency(in.Text, m.catalog.Currencies)
		if !ok {
			return m.fail(h, sess, invalidf("unknown currency %q", strings.TrimSpace(in.Text)))
		}
		sess.Draft.Currency = currency

	case dwizard.StepEnterAmount:
		amount, err := ParseAmount(in.Text)
		if err != nil {
			return m.fail(h, sess, err)
		}
		sess.Draft.Amount = amount
		sess.Draft.AmountSet = true

	case dwizard.StepSelectSource:
		key, ok := matchKeyed(in.Text, m.catalog.Sources)
		if !ok {
			return m.fail(h, sess, invalidf("unknown source %q", strings.TrimSpace(in.Text)))
		}
		sess.Draft.Source = key

	case dwizard.StepAttachDocument:
		if in.Document == nil {
			return m.fail(h, sess, invalidf("attach a document or send \"skip\""))
		}
		ref, err := m.documents.Store(ctx, user.TelegramID, in.DocumentName, in.Document)
		if err != nil {
			// Collaborator failure, not user error: keep the step and
			// the retry counter untouched
			m.logger.Error("Failed to store document",
				zap.Int64("user_id", user.TelegramID),
				zap.Error(err))
			return Reply{Text: "Could not store the document, please try again."}, nil
		}
		sess.Draft.DocumentRef = ref

	case dwizard.StepEnterNote:
		note, err := ValidateNote(in.Text)
		if err != nil {
			return m.fail(h, sess, err)
		}
		sess.Draft.Note = note

	case dwizard.StepSelectPeriod:
		start, end, err := ParsePeriod(in.Text)
		if err != nil {
			return m.fail(h, sess, err)
		}
		sess.Draft.PeriodStart = start
		sess.Draft.PeriodEnd = end
		sess.Draft.PeriodSet = true

	case dwizard.StepConfirm:
		return m.confirm(ctx, h, sess, user, command)

	default:
		h.Clear()
		return Reply{Text: "Something went wrong, please start again with /new."}, nil
	}

	sess.Retries = 0
	sess.Step = sess.Step.Next()
	return m.prompt(sess), nil
}

// confirm handles the final acknowledgment step
func (m *Machine) confirm(ctx context.Context, h *session.Handle, sess *session.Session, user *entity.User, command string) (Reply, error) {
	switch command {
	case "yes", "confirm", "y":
		return m.persist(ctx, h, sess, user)
	case "edit":
		// Back to the first step with the draft retained
		sess.Step = dwizard.StepSelectProject
		sess.Retries = 0
		return m.prompt(sess), nil
	case "no":
		h.Clear()
		return Reply{Text: "Request creation cancelled."}, nil
	default:
		return m.fail(h, sess, invalidf("answer \"yes\", \"edit\" or \"no\""))
	}
}

// persist creates the pending request from the completed draft and
// destroys the session
func (m *Machine) persist(ctx context.Context, h *session.Handle, sess *session.Session, user *entity.User) (Reply, error) {
	if !sess.Draft.Complete() {
		h.Clear()
		return Reply{Text: "The draft is incomplete, please start again with /new."}, nil
	}

	if !m.authorizer.Allowed(user.TelegramID, auth.PermissionCreate, auth.ResourceContext{}) {
		h.Clear()
		return Reply{Text: "You are not allowed to create requests."}, nil
	}

	now := time.Now()
	periodStart := sess.Draft.PeriodStart
	periodEnd := sess.Draft.PeriodEnd
	request := &entity.Request{
		UserID:      user.TelegramID,
		Project:     sess.Draft.Project,
		Amount:      sess.Draft.Amount,
		Currency:    sess.Draft.Currency,
		Source:      sess.Draft.Source,
		DocumentRef: sess.Draft.DocumentRef,
		Note:        sess.Draft.Note,
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
		Status:      lifecycle.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.requests.Create(ctx, request); err != nil {
		m.logger.Error("Failed to create request",
			zap.Int64("user_id", user.TelegramID),
			zap.Error(err))
		// Session stays at Confirm so the user can retry
		return Reply{Text: "Could not save the request, please try again."}, err
	}

	h.Clear()
	m.logger.Info("Request created",
		zap.Int64("request_id", request.ID),
		zap.Int64("user_id", user.TelegramID),
		zap.String("project", request.Project),
		zap.String("source", request.Source))

	return Reply{Text: fmt.Sprintf("Request #%d created and is pending approval.", request.ID)}, nil
}

// fail re-prompts the current step after invalid input. The draft is
// never touched; the retry counter is the only mutation. Exceeding the
// retry limit discards the session.
func (m *Machine) fail(h *session.Handle, sess *session.Session, err error) (Reply, error) {
	sess.Retries++
	if sess.Retries >= m.maxRetries {
		h.Clear()
		return Reply{Text: "Too many invalid inputs, request creation aborted. Start again with /new."}, nil
	}

	prompt := m.prompt(sess)
	prompt.Text = err.Error() + "\n" + prompt.Text
	return prompt, nil
}

// prompt builds the prompt for the session's current step
func (m *Machine) prompt(sess *session.Session) Reply {
	switch sess.Step {
	case dwizard.StepSelectProject:
		return Reply{Text: "Select a project:", Options: sortedKeys(m.catalog.Projects)}
	case dwizard.StepSelectCurrency:
		return Reply{Text: "Select a currency:", Options: m.catalog.Currencies}
	case dwizard.StepEnterAmount:
		return Reply{Text: "Enter the amount:"}
	case dwizard.StepSelectSource:
		return Reply{Text: "Select a payment source:", Options: sortedKeys(m.catalog.Sources)}
	case dwizard.StepAttachDocument:
		return Reply{Text: "Attach a supporting document or send \"skip\":", Options: []string{"skip"}}
	case dwizard.StepEnterNote:
		return Reply{
			Text:    "Enter a note or send \"skip\":",
			Options: append(append([]string{}, m.catalog.NoteOptions...), "skip"),
		}
	case dwizard.StepSelectPeriod:
		return Reply{Text: "Enter the service period (DD.MM.YYYY-DD.MM.YYYY or a single date):"}
	case dwizard.StepConfirm:
		return Reply{Text: m.summary(&sess.Draft), Options: []string{"yes", "edit", "no"}}
	default:
		return Reply{Text: "Something went wrong, please start again with /new."}
	}
}

// summary renders the accumulated draft for final acknowledgment
func (m *Machine) summary(draft *dwizard.Draft) string {
	var b strings.Builder
	b.WriteString("Please confirm the request:\n")
	fmt.Fprintf(&b, "Project: %s\n", m.label(m.catalog.Projects, draft.Project))
	fmt.Fprintf(&b, "Amount: %s %s\n", draft.Amount.String(), draft.Currency)
	fmt.Fprintf(&b, "Source: %s\n", m.label(m.catalog.Sources, draft.Source))
	if draft.DocumentRef != "" {
		fmt.Fprintf(&b, "Document: %s\n", draft.DocumentRef)
	}
	if draft.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", draft.Note)
	}
	if draft.PeriodSet {
		fmt.Fprintf(&b, "Period: %s - %s\n",
			draft.PeriodStart.Format("02.01.2006"),
			draft.PeriodEnd.Format("02.01.2006"))
	}
	b.WriteString("Answer \"yes\" to submit, \"edit\" to change, \"no\" to cancel.")
	return b.String()
}

func (m *Machine) label(catalog map[string]string, key string) string {
	if label, ok := catalog[key]; ok {
		return label
	}
	return key
}

// matchKeyed matches input against a catalog by key or label,
// case-insensitively, returning the canonical key
func matchKeyed(input string, catalog map[string]string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return "", false
	}
	for key, label := range catalog {
		if needle == strings.ToLower(key) || needle == strings.ToLower(label) {
			return key, true
		}
	}
	return "", false
}

// matchCurrency matches input against the currency list, returning the
// canonical spelling
func matchCurrency(input string, currencies []string) (string, bool) {
	needle := strings.ToUpper(strings.TrimSpace(input))
	for _, currency := range currencies {
		if needle == strings.ToUpper(currency) {
			return currency, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
