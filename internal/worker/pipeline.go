package worker

import (
	"context"
	"errors"
	"log/slog"

	"web3mail/internal/email"
	"web3mail/internal/external"
	"web3mail/internal/types"
)

// errInvalidEmail is reported when the fallback validator rejects the address.
var errInvalidEmail = types.NewWorkflowError(types.ErrCodeWorkflowInvalidEmail,
	"The protected email address seems to be invalid.", nil)

// itemOutcome is the result of the pipeline for one protected data.
type itemOutcome struct {
	result types.TaskResult
	check  emailCheck
}

// process runs the single-data pipeline for d. Failures are captured into the
// returned result.
func (w *Worker) process(ctx context.Context, d Dataset) itemOutcome {
	logger := w.logger.With("index", d.Index, "protected_data", d.Address)
	out := itemOutcome{result: types.TaskResult{ProtectedData: d.Address}}

	recipient, err := loadProtectedEmail(d.Path, w.validate)
	if err != nil {
		return out.fail(logger, err)
	}
	logger = logger.With("recipient", email.RedactEmail(recipient))

	out.check = w.checkEmail(ctx, d, recipient, logger)
	if out.check.performed || out.check.valid {
		valid := out.check.valid
		out.result.IsEmailValid = &valid
	}
	if out.check.performed && !out.check.valid {
		return out.fail(logger, errInvalidEmail)
	}

	body, err := w.content()
	if err != nil {
		return out.fail(logger, err)
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return out.fail(logger, err)
		}
	}

	msg := email.Compose(w.cfg.Requester, w.cfg.Developer.MailjetSender, recipient, body, d.Address)
	msgID, err := w.clients.Email.Send(ctx, msg)
	if err != nil {
		return out.fail(logger, types.NewWorkflowError(types.ErrCodeWorkflowEmailSendFailed, "Failed to send email", err))
	}

	logger.Info("email sent", "provider_msg_id", msgID)
	out.result.Success = true
	return out
}

// checkEmail decides whether recipient may be trusted. A prior successful
// validation skips the fallback validator. An unreachable validator leaves
// the address unchecked.
func (w *Worker) checkEmail(ctx context.Context, d Dataset, recipient string, logger *slog.Logger) emailCheck {
	if hasPriorValidation(ctx, w.clients.Subgraph, d.Address, w.cfg.Developer.WhitelistedApps, logger) {
		logger.Info("email already validated by a previous task, skipping validation")
		return emailCheck{valid: true}
	}

	verdict, err := w.clients.Validator.CheckDeliverability(ctx, recipient)
	switch {
	case err != nil:
		logger.Warn("email validation unavailable, continuing", "error", err)
		return emailCheck{}
	case verdict == external.Deliverable:
		return emailCheck{valid: true, performed: true}
	case verdict == external.Undeliverable:
		return emailCheck{performed: true}
	default:
		return emailCheck{}
	}
}

func (o itemOutcome) fail(logger *slog.Logger, err error) itemOutcome {
	logger.Error("task item failed", "error", err)
	o.result.Success = false
	o.result.Error = errorMessage(err)
	return o
}

// errorMessage is the user-facing text stored in result files.
func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
