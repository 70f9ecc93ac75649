package domain

import (
	"flash-chat/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names and collection used on the wire. They match the layout
// written by the mobile clients, so existing logs stay readable.
const (
	SenderField       = "Sender"
	BodyField         = "MessageBody"
	DefaultCollection = "Messages"
)

var validate = validator.New()

// Record is a raw child of the external log, before validation.
// Key is assigned by the log and orders records by log position.
type Record struct {
	Key    string
	Fields map[string]any
}

type messageRecord struct {
	Sender string `validate:"required"`
	Body   string `validate:"required,notblank"`
}

func init() {
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// DecodeRecord turns a raw record into a Message.
// Any missing, non-string or blank field yields ErrMalformedRecord.
func DecodeRecord(r Record) (Message, error) {
	sender, err := stringField(r, SenderField)
	if err != nil {
		return Message{}, err
	}
	body, err := stringField(r, BodyField)
	if err != nil {
		return Message{}, err
	}
	mr := messageRecord{Sender: sender, Body: body}
	if err = validate.Struct(mr); err != nil {
		return Message{}, fmt.Errorf("%w: key %q: %v", errors.ErrMalformedRecord, r.Key, err)
	}
	return Message{Sender: mr.Sender, Body: mr.Body}, nil
}

// EncodeMessage returns the fields written to the log for a message.
func EncodeMessage(m Message) map[string]any {
	return map[string]any{
		SenderField: m.Sender,
		BodyField:   m.Body,
	}
}

func stringField(r Record, name string) (string, error) {
	raw, ok := r.Fields[name]
	if !ok {
		return "", fmt.Errorf("%w: key %q: missing %s", errors.ErrMalformedRecord, r.Key, name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q: %s is %T, want string", errors.ErrMalformedRecord, r.Key, name, raw)
	}
	return s, nil
}
