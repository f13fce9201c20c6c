package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codex-k8s/ticketlint/internal/githubapi"
	"github.com/codex-k8s/ticketlint/internal/lint"
	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/platform/mocks"
	"github.com/codex-k8s/ticketlint/internal/webhook"
)

const secret = "s3cr3t"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func payload(action, title, branch string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"action": action,
		"number": 12,
		"pull_request": map[string]any{
			"number": 12,
			"title":  title,
			"user":   map[string]any{"login": "alice", "type": "User"},
			"head":   map[string]any{"ref": branch},
		},
		"repository":   map[string]any{"name": "web", "owner": map[string]any{"login": "acme"}},
		"installation": map[string]any{"id": 99},
	})
	return raw
}

type fakeTokens struct {
	ids []int64
	err error
}

func (f *fakeTokens) InstallationToken(_ context.Context, id int64) (string, error) {
	f.ids = append(f.ids, id)
	return "ghs_test", f.err
}

var _ = Describe("Server", func() {
	var (
		client  *mocks.Client
		events  []githubapi.Event
		router  http.Handler
		factErr error
	)

	BeforeEach(func() {
		client = &mocks.Client{}
		events = nil
		factErr = nil

		srv, err := webhook.NewServer(webhook.Options{
			Secret: secret,
			Lint: lint.Options{
				TitlePattern:  regexp.MustCompile(`^\[(?<ticketPrefix>PROJ)-(?<ticketNumber>\d+)\]`),
				BranchPattern: regexp.MustCompile(`(?<ticketPrefix>PROJ)-(?<ticketNumber>\d+)`),
				TitleFormat:   "[%ticketPrefix%-%ticketNumber%] %title%",
				TicketLink:    "https://t/%ticketPrefix%/%ticketNumber%",
				Quiet:         true,
			},
			Clients: func(_ context.Context, ev githubapi.Event) (platform.Client, error) {
				events = append(events, ev)
				if factErr != nil {
					return nil, factErr
				}
				return client, nil
			},
			Timeout: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		router = srv.Router()
	})

	deliver := func(event string, body []byte, signature string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", event)
		req.Header.Set("X-Hub-Signature-256", signature)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return w, resp
	}

	It("answers health checks", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"status":"ok"`))
	})

	It("rejects a bad signature", func() {
		body := payload("opened", "Add login flow", "feature/PROJ-42")

		w, _ := deliver("pull_request", body, "sha256=deadbeef")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))

		w, _ = deliver("pull_request", body, "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(events).To(BeEmpty())
	})

	It("acknowledges other events without linting", func() {
		body := []byte(`{"zen":"Keep it logically awesome."}`)
		w, resp := deliver("ping", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["outcome"]).To(Equal("ignored"))
		Expect(events).To(BeEmpty())
	})

	It("acknowledges unrelated pull_request actions", func() {
		body := payload("closed", "Add login flow", "feature/PROJ-42")
		w, resp := deliver("pull_request", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["outcome"]).To(Equal("ignored"))
		Expect(client.Calls).To(BeEmpty())
	})

	It("rewrites the title from the branch", func() {
		body := payload("opened", "Add login flow", "feature/PROJ-42")
		w, resp := deliver("pull_request", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["outcome"]).To(Equal(string(lint.OutcomeTitleUpdated)))
		Expect(resp["title"]).To(Equal("[PROJ-42] Add login flow"))
		Expect(client.Titles).To(Equal([]string{"[PROJ-42] Add login flow"}))
		Expect(client.CreatedContaining("https://t/PROJ/42")).To(Equal(1))
		Expect(events).To(HaveLen(1))
		Expect(events[0].InstallationID).To(Equal(int64(99)))
	})

	It("reports a lint failure in the body", func() {
		body := payload("edited", "Add login flow", "feature/login")
		w, resp := deliver("pull_request", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["outcome"]).To(Equal("failure"))
		Expect(resp["message"]).To(Equal(lint.MsgNoTicket))
	})

	It("returns 502 when the platform fails", func() {
		client.UpdateErr = errors.New("HTTP 403")
		body := payload("synchronize", "Add login flow", "feature/PROJ-42")
		w, resp := deliver("pull_request", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusBadGateway))
		Expect(resp["message"]).To(ContainSubstring("HTTP 403"))
	})

	It("returns 502 when no client can be built", func() {
		factErr = errors.New("no installation")
		body := payload("opened", "Add login flow", "feature/PROJ-42")
		w, _ := deliver("pull_request", body, sign(body))

		Expect(w.Code).To(Equal(http.StatusBadGateway))
	})

	It("rejects payloads without a pull request", func() {
		body := []byte(`{"action":"opened"}`)
		w, _ := deliver("pull_request", body, sign(body))
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("NewServer", func() {
	It("requires a secret and a client factory", func() {
		_, err := webhook.NewServer(webhook.Options{})
		Expect(err).To(HaveOccurred())

		_, err = webhook.NewServer(webhook.Options{Secret: secret})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("AppClients", func() {
	It("exchanges the installation token", func() {
		tokens := &fakeTokens{}
		factory := webhook.AppClients(tokens, nil)

		c, err := factory(context.Background(), githubapi.Event{InstallationID: 7})
		Expect(err).NotTo(HaveOccurred())
		Expect(c).NotTo(BeNil())
		Expect(tokens.ids).To(Equal([]int64{7}))
	})

	It("fails without an installation", func() {
		_, err := webhook.AppClients(&fakeTokens{}, nil)(context.Background(), githubapi.Event{})
		Expect(err).To(HaveOccurred())
	})

	It("propagates token errors", func() {
		tokens := &fakeTokens{err: errors.New("Bad credentials")}
		_, err := webhook.AppClients(tokens, nil)(context.Background(), githubapi.Event{InstallationID: 7})
		Expect(err).To(MatchError(ContainSubstring("Bad credentials")))
	})
})
