package logservice

import (
	"flash-chat/domain"
	"flash-chat/errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	collectionField = "collection"
	fieldsField     = "fields"
	afterField      = "after"
	keyField        = "key"
)

func NewWriteRequest(collection string, fields map[string]any) (*structpb.Struct, error) {
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMalformedRecord, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		collectionField: structpb.NewStringValue(collection),
		fieldsField:     structpb.NewStructValue(payload),
	}}, nil
}

// ParseWriteRequest returns the target collection and the fields to store.
func ParseWriteRequest(req *structpb.Struct) (string, map[string]any, error) {
	collection := req.GetFields()[collectionField].GetStringValue()
	if err := domain.ValidateCollection(collection); err != nil {
		return "", nil, err
	}
	payload := req.GetFields()[fieldsField].GetStructValue()
	if payload == nil {
		return "", nil, fmt.Errorf("%w: no fields", errors.ErrMalformedRecord)
	}
	return collection, payload.AsMap(), nil
}

func NewSubscribeRequest(collection, after string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		collectionField: structpb.NewStringValue(collection),
		afterField:      structpb.NewStringValue(after),
	}}
}

func ParseSubscribeRequest(req *structpb.Struct) (string, string, error) {
	collection := req.GetFields()[collectionField].GetStringValue()
	if err := domain.ValidateCollection(collection); err != nil {
		return "", "", err
	}
	return collection, req.GetFields()[afterField].GetStringValue(), nil
}

// NewRecordMessage encodes a record for the Subscribe stream. A record
// without fields travels with a null payload.
func NewRecordMessage(r domain.Record) (*structpb.Struct, error) {
	payload := structpb.NewNullValue()
	if r.Fields != nil {
		s, err := structpb.NewStruct(r.Fields)
		if err != nil {
			return nil, err
		}
		payload = structpb.NewStructValue(s)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyField:    structpb.NewStringValue(r.Key),
		fieldsField: payload,
	}}, nil
}

func ParseRecordMessage(msg *structpb.Struct) domain.Record {
	record := domain.Record{Key: msg.GetFields()[keyField].GetStringValue()}
	if payload := msg.GetFields()[fieldsField].GetStructValue(); payload != nil {
		record.Fields = payload.AsMap()
	}
	return record
}
