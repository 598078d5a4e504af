// Command smoke walks the primary API flow against a running instance:
// login, create a form, read it through its share token, submit a
// response, then list and count responses. Exits non-zero on the first
// mismatch so it can gate deploys.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base     string
		email    string
		password string
		timeout  time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&email, "email", "admin@formhub.local", "Login email")
	flag.StringVar(&password, "password", "", "Login password")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if password == "" {
		log.Fatal("missing -password")
	}

	c := &client{http: &http.Client{Timeout: timeout}, base: base + "/api/v1"}

	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do("POST", "/auth/login", map[string]string{"email": email, "password": password}, &login); err != nil {
		log.Fatalf("login: %v", err)
	}
	c.token = login.AccessToken
	log.Println("login ok")

	var form struct {
		ID         string `json:"id"`
		ShareToken string `json:"share_token"`
		Sections   []struct {
			Questions []struct {
				ID string `json:"id"`
			} `json:"questions"`
		} `json:"sections"`
	}
	createBody := map[string]interface{}{
		"title": "smoke " + time.Now().Format(time.RFC3339),
		"sections": []map[string]interface{}{{
			"title": "S1",
			"questions": []map[string]interface{}{{
				"text":          "How did it go?",
				"question_type": "short_text",
			}},
		}},
	}
	if err := c.do("POST", "/forms", createBody, &form); err != nil {
		log.Fatalf("create form: %v", err)
	}
	log.Printf("form created: %s", form.ID)

	var shared json.RawMessage
	if err := c.do("GET", "/forms/shared/"+form.ShareToken, nil, &shared); err != nil {
		log.Fatalf("shared read: %v", err)
	}
	log.Println("shared read ok")

	questionID := form.Sections[0].Questions[0].ID
	submitBody := map[string]interface{}{
		"answers": []map[string]interface{}{{
			"question_id": questionID,
			"text_answer": "fine",
		}},
	}
	var submitted json.RawMessage
	if err := c.do("POST", "/forms/shared/"+form.ShareToken+"/responses", submitBody, &submitted); err != nil {
		log.Fatalf("submit: %v", err)
	}
	log.Println("submit ok")

	var responses []json.RawMessage
	if err := c.do("GET", "/forms/"+form.ID+"/responses", nil, &responses); err != nil {
		log.Fatalf("list responses: %v", err)
	}
	if len(responses) == 0 {
		log.Fatal("submission not visible in responses list")
	}
	log.Printf("responses ok (%d)", len(responses))

	if err := c.do("DELETE", "/forms/"+form.ID, nil, nil); err != nil {
		log.Fatalf("cleanup delete: %v", err)
	}
	log.Println("smoke passed")
}

type client struct {
	http  *http.Client
	base  string
	token string
}

func (c *client) do(method, path string, body interface{}, out interface{}) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: bad envelope: %w", method, path, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s %s: %s: %s", method, path, env.Error.Code, env.Error.Message)
	}
	return json.Unmarshal(env.Data, out)
}
