package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/application/service"
	"github.com/ForsunJay/TGTEST/internal/auth"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
	"github.com/ForsunJay/TGTEST/internal/wizard"
)

const helpText = `Commands:
/new - create a reimbursement request
/cancel - abort the current request
approve <id> [note] - move a pending request to waiting
pay <id> [note] - mark a waiting request as paid
reject <id> <reason> - reject a request
comment <id> <text> - comment on a request
edit <id> <field> <value> - change amount, note or period
show <id> - show a request with its history
list [status] [page] - list requests
export [status] - export requests to a spreadsheet`

// listPageSize caps one list reply; older requests are reached through
// the page argument
const listPageSize = 20

// Router dispatches normalized updates to the wizard or the request
// service and sends the outcome back through the messenger. One Handle
// call per update; transport retries are the caller's concern.
type Router struct {
	users      port.UserRepository
	requests   *service.RequestService
	wizard     *wizard.Machine
	exporter   port.Exporter
	authorizer *auth.Authorizer
	messenger  port.Messenger
	logger     *zap.Logger
}

// NewRouter creates a router
func NewRouter(
	users port.UserRepository,
	requests *service.RequestService,
	machine *wizard.Machine,
	exporter port.Exporter,
	authorizer *auth.Authorizer,
	messenger port.Messenger,
	logger *zap.Logger,
) *Router {
	return &Router{
		users:      users,
		requests:   requests,
		wizard:     machine,
		exporter:   exporter,
		authorizer: authorizer,
		messenger:  messenger,
		logger:     logger,
	}
}

// Handle processes one update end to end
func (r *Router) Handle(ctx context.Context, upd Update) {
	user, err := r.users.GetOrCreate(ctx, upd.UserID, upd.Username, r.authorizer.RoleOf(upd.UserID))
	if err != nil {
		r.logger.Error("Failed to resolve user", zap.Int64("user_id", upd.UserID), zap.Error(err))
		r.send(ctx, upd.UserID, "Temporary failure, please try again.", nil)
		return
	}

	text, options := r.dispatch(ctx, user, upd)
	if text != "" {
		r.send(ctx, user.TelegramID, text, options)
	}
}

// dispatch picks the handler for the update and returns the reply
func (r *Router) dispatch(ctx context.Context, user *entity.User, upd Update) (string, []string) {
	fields := strings.Fields(upd.Text)
	first := ""
	if len(fields) > 0 {
		first = strings.ToLower(fields[0])
	}

	// While a wizard session is live every plain message is the next
	// wizard input; only slash commands break out. A note like
	// "list of SMS campaigns" must reach the note step, not the list
	// command.
	if r.wizard.Active(user.TelegramID) && !strings.HasPrefix(first, "/") {
		return r.wizardInput(ctx, user, upd)
	}

	command := strings.TrimPrefix(first, "/")

	switch command {
	case "start", "help":
		return helpText, nil

	case "new":
		reply, err := r.wizard.Start(ctx, user)
		if err != nil {
			return r.errorText(err), nil
		}
		return reply.Text, reply.Options

	case "cancel":
		reply := r.wizard.Cancel(user.TelegramID)
		return reply.Text, nil

	case "approve":
		return r.transition(ctx, user, fields, lifecycle.TriggerMarkWaiting), nil

	case "pay":
		return r.transition(ctx, user, fields, lifecycle.TriggerMarkPaid), nil

	case "reject":
		return r.transition(ctx, user, fields, lifecycle.TriggerReject), nil

	case "comment":
		return r.comment(ctx, user, fields), nil

	case "edit":
		return r.edit(ctx, user, fields), nil

	case "show":
		return r.show(ctx, user, fields), nil

	case "list":
		return r.list(ctx, user, fields), nil

	case "export":
		return r.export(ctx, user, fields), nil
	}

	// A document outside any session starts a fresh wizard
	if upd.Document != nil {
		return r.wizardInput(ctx, user, upd)
	}

	return "Unknown command.\n\n" + helpText, nil
}

func (r *Router) wizardInput(ctx context.Context, user *entity.User, upd Update) (string, []string) {
	reply, err := r.wizard.HandleInput(ctx, user, wizard.Input{
		Text:         upd.Text,
		Document:     upd.Document,
		DocumentName: upd.DocumentName,
	})
	if err != nil {
		r.logger.Error("Wizard input failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
	}
	return reply.Text, reply.Options
}

// transition handles approve, pay and reject
func (r *Router) transition(ctx context.Context, user *entity.User, fields []string, trigger lifecycle.Trigger) string {
	id, note, err := parseIDAndTail(fields)
	if err != nil {
		return err.Error()
	}

	request, err := r.requests.Transition(ctx, user, id, trigger, note)
	if errors.Is(err, port.ErrConflict) {
		// A lost race is retried once; the re-read sees the winner's
		// status, so the reply names the precise violation instead of
		// a generic conflict
		request, err = r.requests.Transition(ctx, user, id, trigger, note)
	}
	if err != nil {
		return r.errorText(err)
	}

	return fmt.Sprintf("Request #%d is now %s.", request.ID, request.Status)
}

func (r *Router) comment(ctx context.Context, user *entity.User, fields []string) string {
	id, text, err := parseIDAndTail(fields)
	if err != nil {
		return err.Error()
	}
	if text == "" {
		return "Usage: comment <id> <text>"
	}

	if _, err := r.requests.AddComment(ctx, user, id, text); err != nil {
		return r.errorText(err)
	}
	return fmt.Sprintf("Comment added to request #%d.", id)
}

func (r *Router) edit(ctx context.Context, user *entity.User, fields []string) string {
	if len(fields) < 4 {
		return "Usage: edit <id> <field> <value>"
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "Usage: edit <id> <field> <value>"
	}

	field := strings.ToLower(fields[2])
	value := strings.Join(fields[3:], " ")

	request, err := r.requests.Edit(ctx, user, id, field, value)
	if err != nil {
		return r.errorText(err)
	}
	return fmt.Sprintf("Request #%d updated.", request.ID)
}

func (r *Router) show(ctx context.Context, user *entity.User, fields []string) string {
	id, _, err := parseIDAndTail(fields)
	if err != nil {
		return err.Error()
	}

	request, comments, err := r.requests.Get(ctx, user, id)
	if err != nil {
		return r.errorText(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", formatRequest(request))
	if request.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", request.Note)
	}
	if request.DocumentRef != "" {
		fmt.Fprintf(&b, "Document: %s\n", request.DocumentRef)
	}
	for _, comment := range comments {
		if comment.IsTransition() {
			fmt.Fprintf(&b, "[%s -> %s] ", comment.StatusFrom, comment.StatusTo)
		}
		fmt.Fprintf(&b, "%d: %s\n", comment.AuthorID, comment.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) list(ctx context.Context, user *entity.User, fields []string) string {
	filter, page, err := parseListArgs(fields)
	if err != nil {
		return err.Error()
	}
	filter.Limit = listPageSize
	filter.Offset = (page - 1) * listPageSize

	requests, err := r.requests.List(ctx, user, filter)
	if err != nil {
		return r.errorText(err)
	}
	if len(requests) == 0 {
		if page > 1 {
			return fmt.Sprintf("No requests on page %d.", page)
		}
		return "No requests found."
	}

	var b strings.Builder
	for _, request := range requests {
		b.WriteString(formatRequest(request))
		b.WriteByte('\n')
	}
	if len(requests) == listPageSize {
		statusArg := ""
		if filter.Status != "" {
			statusArg = string(filter.Status) + " "
		}
		fmt.Fprintf(&b, "Send \"list %s%d\" for more.\n", statusArg, page+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) export(ctx context.Context, user *entity.User, fields []string) string {
	if !r.authorizer.Allowed(user.TelegramID, auth.PermissionViewAll, auth.ResourceContext{}) {
		return r.errorText(service.ErrPermissionDenied)
	}

	filter, err := parseFilter(fields)
	if err != nil {
		return err.Error()
	}

	requests, err := r.requests.List(ctx, user, filter)
	if err != nil {
		return r.errorText(err)
	}

	path, err := r.exporter.Export(ctx, requests)
	if err != nil {
		r.logger.Error("Export failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
		return "Export failed, please try again later."
	}
	return fmt.Sprintf("Exported %d requests to %s", len(requests), path)
}

func (r *Router) send(ctx context.Context, userID int64, text string, options []string) {
	if err := r.messenger.SendMessage(ctx, userID, text, options); err != nil {
		r.logger.Error("Failed to send message", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// errorText maps service errors to user-facing replies. Internal detail
// never leaks to the chat.
func (r *Router) errorText(err error) string {
	var verr *wizard.ValidationError
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return "You are not allowed to do that."
	case errors.Is(err, port.ErrNotFound):
		return "Request not found."
	case errors.Is(err, port.ErrConflict):
		return "The request was changed by someone else, check its status and retry."
	case errors.Is(err, service.ErrReasonRequired):
		return "A reason is required: reject <id> <reason>"
	case errors.Is(err, service.ErrFieldNotEditable):
		return "Only amount, note and period can be edited."
	case errors.Is(err, lifecycle.ErrTerminalState):
		return "The request is already finalized."
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "That action does not apply to the request's current status."
	case errors.As(err, &verr):
		return verr.Error()
	}

	r.logger.Error("Unhandled operation error", zap.Error(err))
	return "Temporary failure, please try again."
}

func formatRequest(request *entity.Request) string {
	return fmt.Sprintf("#%d [%s] %s %s, %s via %s",
		request.ID,
		request.Status,
		request.Amount.String(),
		request.Currency,
		request.Project,
		request.Source,
	)
}

// parseIDAndTail extracts the request id and the optional free text after
// it from a command like "approve 7 looks fine"
func parseIDAndTail(fields []string) (int64, string, error) {
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("usage: %s <id> [text]", strings.TrimPrefix(fields[0], "/"))
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%q is not a request id", fields[1])
	}
	return id, strings.Join(fields[2:], " "), nil
}

// parseFilter reads an optional status argument for export
func parseFilter(fields []string) (port.RequestFilter, error) {
	var filter port.RequestFilter
	if len(fields) < 2 {
		return filter, nil
	}

	status := lifecycle.Status(strings.ToLower(fields[1]))
	if !status.IsValid() {
		return filter, fmt.Errorf("unknown status %q, use pending, waiting, paid or rejected", fields[1])
	}
	filter.Status = status
	return filter, nil
}

// parseListArgs reads the optional status and page arguments of the list
// command, in either order
func parseListArgs(fields []string) (port.RequestFilter, int, error) {
	var filter port.RequestFilter
	page := 1

	for _, arg := range fields[1:] {
		if n, err := strconv.Atoi(arg); err == nil {
			if n < 1 {
				return filter, 0, fmt.Errorf("page must be 1 or higher")
			}
			page = n
			continue
		}

		status := lifecycle.Status(strings.ToLower(arg))
		if !status.IsValid() {
			return filter, 0, fmt.Errorf("unknown status %q, use pending, waiting, paid or rejected", arg)
		}
		filter.Status = status
	}

	return filter, page, nil
}
