package tool

import (
	"context"
	"errors"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	backendx "github.com/abhaygunhalkar/insurance-agents/pkg/backend"
)

const (
	ToolGenerateQuoteID = "generate_quote_id"
	ToolSaveLead        = "save_lead"
	ToolSendEmail       = "send_email_notification"
)

// DeclareLeadTools registers the three backend tool functions on the
// registry. Each is a thin synchronous call with uniform degradation: any
// fault becomes a descriptive Err outcome, never an error past the tool
// boundary.
func DeclareLeadTools(r *Registry, backend contractx.LeadBackend) error {
	if r == nil || backend == nil {
		return errors.New("registry and backend are required")
	}

	if err := r.Declare(Declaration{
		Name:    ToolGenerateQuoteID,
		Desc:    "Generates a unique quote ID for a new life insurance lead.",
		Params:  map[string]Param{},
		Handler: generateQuoteIDHandler(backend),
	}); err != nil {
		return err
	}

	if err := r.Declare(Declaration{
		Name: ToolSaveLead,
		Desc: "Saves the lead's information to the secure database. Use only after all fields are collected and a quote ID has been generated.",
		Params: map[string]Param{
			"quote_id":     {Type: ParamString, Desc: "The quote ID associated with this lead", Required: true},
			"full_name":    {Type: ParamString, Desc: "Full name of the lead", Required: true},
			"email":        {Type: ParamString, Desc: "Email address of the lead", Required: true},
			"phone_number": {Type: ParamString, Desc: "Phone number of the lead", Required: true},
			"age":          {Type: ParamInteger, Desc: "Age of the lead", Required: true},
			"location":     {Type: ParamString, Desc: "Location/city of the lead", Required: true},
		},
		Handler: saveLeadHandler(backend),
	}); err != nil {
		return err
	}

	return r.Declare(Declaration{
		Name: ToolSendEmail,
		Desc: "Sends a confirmation email to the customer after their quote is created.",
		Params: map[string]Param{
			"to_email":  {Type: ParamString, Desc: "The customer's email address", Required: true},
			"quote_id":  {Type: ParamString, Desc: "The generated quote ID", Required: true},
			"full_name": {Type: ParamString, Desc: "The customer's full name", Required: true},
		},
		Handler: sendEmailHandler(backend),
	})
}

func generateQuoteIDHandler(backend contractx.LeadBackend) Handler {
	return func(ctx context.Context, _ map[string]any) contractx.ToolOutcome {
		quoteID, err := backend.GenerateQuoteID(ctx)
		if err != nil {
			return degrade(err, "could not generate quote ID")
		}
		return contractx.Ok(quoteID)
	}
}

func saveLeadHandler(backend contractx.LeadBackend) Handler {
	return func(ctx context.Context, args map[string]any) contractx.ToolOutcome {
		age, _ := IntArg(args, "age")
		lead := contractx.Lead{
			QuoteID:     mustString(args, "quote_id"),
			FullName:    mustString(args, "full_name"),
			Email:       mustString(args, "email"),
			PhoneNumber: mustString(args, "phone_number"),
			Age:         age,
			Location:    mustString(args, "location"),
		}

		message, err := backend.SaveLead(ctx, lead)
		if err != nil {
			return degrade(err, "could not save the lead information for "+lead.FullName)
		}
		return contractx.Ok(message)
	}
}

func sendEmailHandler(backend contractx.LeadBackend) Handler {
	return func(ctx context.Context, args map[string]any) contractx.ToolOutcome {
		toEmail := mustString(args, "to_email")
		message, err := backend.SendConfirmationEmail(ctx,
			toEmail,
			mustString(args, "quote_id"),
			mustString(args, "full_name"),
		)
		if err != nil {
			return degrade(err, "could not send the confirmation email to "+toEmail)
		}
		return contractx.Ok(message)
	}
}

// degrade maps a transport error to a tagged failure outcome.
func degrade(err error, summary string) contractx.ToolOutcome {
	kind := contractx.FailNetwork
	switch {
	case errors.Is(err, backendx.ErrTimeout):
		kind = contractx.FailTimeout
	case errors.Is(err, backendx.ErrHTTPStatus):
		kind = contractx.FailHTTPStatus
	case errors.Is(err, backendx.ErrBadResponse):
		kind = contractx.FailBadResponse
	}
	return contractx.Errf(kind, "%s. %v", summary, err)
}

// mustString is used after ValidateArgs has already enforced presence and
// type; missing values degrade to an empty string.
func mustString(args map[string]any, name string) string {
	v, _ := StringArg(args, name)
	return v
}
