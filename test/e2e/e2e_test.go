//go:build e2e

package e2e

import (
	"encoding/json"
	"testing"

	"github.com/complexlabs/docchat/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_FullFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health", func(t *testing.T) {
		resp, err := env.Get("/health")
		require.NoError(t, err)
		assert.Contains(t, string(resp.Data), "ok")
	})

	var sessionID string

	t.Run("create session with default title", func(t *testing.T) {
		resp, err := env.Post("/new-session", nil)
		require.NoError(t, err)

		var session struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &session))
		assert.Equal(t, "New Conversation", session.Title)
		assert.NotEmpty(t, session.ID)
		sessionID = session.ID
	})

	t.Run("list sessions", func(t *testing.T) {
		resp, err := env.Get("/sessions")
		require.NoError(t, err)

		var page struct {
			Sessions []struct {
				ID string `json:"id"`
			} `json:"sessions"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Sessions, 1)
		assert.Equal(t, sessionID, page.Sessions[0].ID)
		assert.False(t, page.HasMore)
	})

	t.Run("rename session", func(t *testing.T) {
		_, err := env.Put("/session/"+sessionID, map[string]string{"new_title": "Revenue questions"})
		require.NoError(t, err)

		resp, err := env.Get("/sessions")
		require.NoError(t, err)
		assert.Contains(t, string(resp.Data), "Revenue questions")
	})

	t.Run("rename without title fails", func(t *testing.T) {
		_, err := env.Put("/session/"+sessionID, map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 400")
	})

	t.Run("rename missing session fails", func(t *testing.T) {
		_, err := env.Put("/session/00000000-0000-0000-0000-000000000000", map[string]string{"new_title": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("upload pdf", func(t *testing.T) {
		env.ParseStub.Pages = []parser.Page{
			{Number: 1, Text: "Revenue grew 12% in the fourth quarter."},
			{Number: 2, Text: "Operating costs stayed flat year over year."},
		}

		resp, err := env.UploadPDF("report.pdf", []byte("%PDF-1.4 fake content"))
		require.NoError(t, err)

		var upload struct {
			Filename       string `json:"filename"`
			UploadedChunks int    `json:"uploaded_chunks"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &upload))
		assert.Equal(t, "report.pdf", upload.Filename)
		assert.Greater(t, upload.UploadedChunks, 0)
	})

	t.Run("upload rejects non-pdf", func(t *testing.T) {
		_, err := env.UploadPDF("notes.txt", []byte("plain text"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only PDF files are allowed")
	})

	t.Run("raw document landed in object storage", func(t *testing.T) {
		url, err := env.S3Client.GenerateDownloadURL(env.Ctx, "documents/report.pdf")
		require.NoError(t, err)

		resp, err := env.HTTPClient.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 200, resp.StatusCode)
	})

	var reasonID string

	t.Run("ask", func(t *testing.T) {
		env.Generator.answer = "Revenue grew 12% in the fourth quarter."

		resp, err := env.Post("/ask", map[string]string{
			"session_id": sessionID,
			"question":   "How did revenue develop?",
		})
		require.NoError(t, err)

		var answer struct {
			Answer   string `json:"answer"`
			ReasonID string `json:"reason_id"`
			Reason   []struct {
				Text      string  `json:"text"`
				Score     float32 `json:"score"`
				Source    string  `json:"source"`
				PageRange string  `json:"page_range"`
			} `json:"reason"`
			History []struct {
				Query  string `json:"query"`
				Answer string `json:"answer"`
			} `json:"history"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &answer))

		assert.Equal(t, "Revenue grew 12% in the fourth quarter.", answer.Answer)
		assert.NotEmpty(t, answer.ReasonID)
		require.NotEmpty(t, answer.Reason)
		assert.Equal(t, "report.pdf", answer.Reason[0].Source)
		assert.Contains(t, answer.Reason[0].Text, "Revenue grew")
		assert.Greater(t, answer.Reason[0].Score, float32(0))
		require.Len(t, answer.History, 1)
		assert.Equal(t, "How did revenue develop?", answer.History[0].Query)
		reasonID = answer.ReasonID
	})

	t.Run("ask without question fails", func(t *testing.T) {
		_, err := env.Post("/ask", map[string]string{"session_id": sessionID})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 400")
	})

	t.Run("chat history carries trace chunks", func(t *testing.T) {
		resp, err := env.Get("/chat/" + sessionID)
		require.NoError(t, err)

		var entries []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Chunks  []struct {
				Source string `json:"source"`
			} `json:"chunks"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "user", entries[0].Role)
		assert.Equal(t, "How did revenue develop?", entries[0].Content)
		assert.Equal(t, "assistant", entries[1].Role)
		require.NotEmpty(t, entries[1].Chunks)
		assert.Equal(t, "report.pdf", entries[1].Chunks[0].Source)
	})

	t.Run("trace persisted with turn", func(t *testing.T) {
		var count int
		err := env.Pool.QueryRow(env.Ctx,
			`SELECT count(*) FROM reasoning_traces WHERE id = $1`, reasonID,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete session cascades", func(t *testing.T) {
		_, err := env.Delete("/session/" + sessionID)
		require.NoError(t, err)

		var turns int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			`SELECT count(*) FROM chat_turns`).Scan(&turns))
		assert.Zero(t, turns)

		var traces int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			`SELECT count(*) FROM reasoning_traces`).Scan(&traces))
		assert.Zero(t, traces)
	})
}
