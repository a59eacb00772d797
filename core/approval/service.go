// Package approval implements the expense and completion approval workflow.
//
// A request starts Pending. Only Pending requests may be edited or deleted, by their requester
// or an admin. Admins approve or reject Pending and OnHold requests, and put Pending ones on hold.
// Every status change is mailed to the requester.
package approval

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("request")

	invalidDataMsg = "invalid data"

	// allowed status transitions
	transitions = map[Status][]Status{
		StatusPending: {StatusApproved, StatusRejected, StatusOnHold},
		StatusOnHold:  {StatusApproved, StatusRejected},
	}
)

type Repository interface {
	CreateRequest(ctx context.Context, req Request, exec ...core.DBExecutor) (Request, error)
	GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (Request, error)
	QueryRequests(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Request, error)
	UpdateRequest(ctx context.Context, req Request, exec ...core.DBExecutor) (Request, error)
	DeleteRequestsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
}

type Service struct {
	repo       Repository
	mailer     core.EmailService
	validate   *validator.Validate
	translator ut.Translator
}

func NewService(repo Repository, mailer core.EmailService, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, mailer: mailer, validate: validate, translator: translator}
}

func (svc *Service) validateStruct(s interface{}) error {
	if err := svc.validate.Struct(s); err != nil {
		return core.TranslateValidationErrors(err, svc.translator, invalidDataMsg)
	}
	return nil
}

// Create files a new Pending request on behalf of usr. Students cannot file requests.
func (svc *Service) Create(ctx context.Context, usr user.User, nr NewRequest) (Request, error) {
	if !usr.HasAnyRole(user.RoleAdmin, user.RoleTeacher) {
		return Request{}, core.ErrPermissionDenied
	}
	nr.Title = core.CleanString(nr.Title)
	nr.Remark = core.CleanString(nr.Remark)
	if err := svc.validateStruct(nr); err != nil {
		return Request{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateRequest(ctx, Request{
		Kind:             nr.Kind,
		ScopeID:          nr.ScopeID,
		Title:            nr.Title,
		Amount:           nr.Amount,
		RequestedBy:      usr.ID,
		RequestedByName:  usr.Name,
		RequestedByEmail: usr.Email,
		Status:           StatusPending,
		Remark:           nr.Remark,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

// Query lists requests, newest first. Non-admins only see their own requests.
func (svc *Service) Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Request, error) {
	if !usr.IsAdmin() {
		filter.RequestedBy = usr.ID
	}
	return svc.repo.QueryRequests(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: false}})
}

// CheckEditable returns a user-facing rule error unless usr may change req.
func CheckEditable(usr user.User, req Request, action string) error {
	if req.RequestedBy != usr.ID && !usr.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if req.Status != StatusPending {
		return core.NewRuleError(fmt.Sprintf("Only pending requests can be %s. This one is %s.", action, req.Status))
	}
	return nil
}

func (svc *Service) Update(ctx context.Context, usr user.User, id string, ur UpdateRequest) (Request, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if err := CheckEditable(usr, req, "edited"); err != nil {
		return Request{}, err
	}
	ur.Title = core.CleanString(ur.Title)
	ur.Remark = core.CleanString(ur.Remark)
	if err := svc.validateStruct(ur); err != nil {
		return Request{}, err
	}

	req.ScopeID = ur.ScopeID
	req.Title = ur.Title
	req.Amount = ur.Amount
	req.Remark = ur.Remark
	req.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRequest(ctx, req)
}

func (svc *Service) Delete(ctx context.Context, usr user.User, id string) error {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckEditable(usr, req, "deleted"); err != nil {
		return err
	}
	_, err = svc.repo.DeleteRequestsByID(ctx, []string{id})
	return err
}

// SetStatus moves a request to status and notifies the requester.
func (svc *Service) SetStatus(ctx context.Context, usr user.User, id string, status Status) (Request, error) {
	if !usr.IsAdmin() {
		return Request{}, core.ErrPermissionDenied
	}
	if !status.Valid() || status == StatusPending {
		return Request{}, core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: "status", Error: "invalid status"})
	}

	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !canMove(req.Status, status) {
		return Request{}, core.NewRuleError(fmt.Sprintf("A request that is %s cannot be moved to %s.", req.Status, status))
	}

	prev := req.Status
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	if req, err = svc.repo.UpdateRequest(ctx, req); err != nil {
		return Request{}, err
	}
	svc.notify(req, prev, usr)
	return req, nil
}

// Hold puts a Pending request on hold.
func (svc *Service) Hold(ctx context.Context, usr user.User, id string) (Request, error) {
	return svc.SetStatus(ctx, usr, id, StatusOnHold)
}

func canMove(from, to Status) bool {
	for _, st := range transitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

type statusMailData struct {
	Request  Request
	Previous Status
	By       string
}

func (svc *Service) notify(req Request, prev Status, by user.User) {
	if svc.mailer == nil || req.RequestedByEmail == "" {
		return
	}
	body := fmt.Sprintf("Hello %s,\n\n%s changed the status of your %s request %q from %s to %s.\n",
		req.RequestedByName, by.Name, req.Kind, req.Title, prev, req.Status)
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: req.RequestedByName, Address: req.RequestedByEmail}},
		Subject:      fmt.Sprintf("Your %s request %q is now %s", req.Kind, req.Title, req.Status),
		BodyStr:      body,
		TemplateName: "request_status",
		TemplateData: statusMailData{Request: req, Previous: prev, By: by.Name},
	})
}
