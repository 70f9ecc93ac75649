package moderation

import (
	"context"
	"flash-chat/domain"
	"flash-chat/mocks"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLog_Masks_Body_Before_Write(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockILog(ctrl)
	filter, err := NewFilter([]string{"badger"}, mask)
	req.NoError(err)
	log := NewLog(next, filter, slog.Default())

	fields := domain.EncodeMessage(domain.Message{Sender: "badger@example.com", Body: "hello badger"})
	counter := maskedMessages.WithLabelValues(language("hello badger"))
	before := testutil.ToFloat64(counter)

	// Then only the body is masked
	next.EXPECT().
		Write(gomock.Any(), domain.DefaultCollection, map[string]any{
			domain.SenderField: "badger@example.com",
			domain.BodyField:   "hello ******",
		}).
		Return("k1", nil)

	key, err := log.Write(context.Background(), domain.DefaultCollection, fields)
	req.NoError(err)
	req.Equal("k1", key)
	// And the caller's map is left alone
	req.Equal("hello badger", fields[domain.BodyField])
	// And the masking is counted under the detected language
	req.Equal(before+1, testutil.ToFloat64(counter))
}

func TestLanguage(t *testing.T) {
	req := require.New(t)
	req.Equal("en", language("The quick brown fox jumps over the lazy dog while the children are playing in the garden"))
	req.Equal("und", language(""))
}

func TestLog_Passes_Clean_Messages_Through(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockILog(ctrl)
	filter, err := NewFilter([]string{"badger"}, mask)
	req.NoError(err)
	log := NewLog(next, filter, slog.Default())

	fields := domain.EncodeMessage(domain.Message{Sender: "alice@example.com", Body: "hello"})
	next.EXPECT().Write(gomock.Any(), domain.DefaultCollection, fields).Return("k1", nil)

	_, err = log.Write(context.Background(), domain.DefaultCollection, fields)
	req.NoError(err)
}
