package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"idle-rpg-server/internal/pkg/i18n"
	"idle-rpg-server/internal/pkg/xerrors"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteErrorMapsBattleCodeToStatus(t *testing.T) {
	w := NewJSONWriter()
	rec := httptest.NewRecorder()

	require.NoError(t, w.WriteError(context.Background(), rec, xerrors.NewBattleNotFoundError("b-404")))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteErrorLocalizesMessageByContextLanguage(t *testing.T) {
	w := NewJSONWriter()
	appErr := xerrors.New(xerrors.CodeAlreadyInBattle, "角色 hero-1 已在战斗 b-1 中")

	// 默认语言：保留构造时的具体中文消息
	rec := httptest.NewRecorder()
	require.NoError(t, w.WriteError(context.Background(), rec, appErr))
	resp := decodeResponse(t, rec)
	require.Equal(t, xerrors.CodeAlreadyInBattle.ToInt(), resp.Code)
	require.Equal(t, "角色 hero-1 已在战斗 b-1 中", resp.Message)
	require.Equal(t, http.StatusConflict, rec.Code)

	// 英文偏好：消息按错误码翻译
	rec = httptest.NewRecorder()
	ctx := i18n.WithLanguage(context.Background(), language.English)
	require.NoError(t, w.WriteError(ctx, rec, appErr))
	resp = decodeResponse(t, rec)
	require.Equal(t, "Hero already in battle", resp.Message)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWriteSuccessWrapsPayload(t *testing.T) {
	w := NewJSONWriter()
	rec := httptest.NewRecorder()

	require.NoError(t, w.WriteSuccess(context.Background(), rec, map[string]string{"battle_id": "b-1"}))
	resp := decodeResponse(t, rec)
	require.Equal(t, xerrors.CodeSuccess.ToInt(), resp.Code)
	require.Equal(t, http.StatusOK, rec.Code)
}
