package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Client — отправка SMS через Eskiz (или имитация в dry-run).
type Client struct {
	Email    string
	Password string
	Sender   string // опционально (nick)
	DryRun   bool   // dry-run режим
	BaseURL  string

	mu    sync.Mutex
	token string
	http  *http.Client
}

type sendSMSResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type authResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

func NewClient(email, password string) *Client {
	return &Client{Email: email, Password: password, BaseURL: "https://notify.eskiz.uz/api", http: &http.Client{}}
}

func NewClientWithOptions(email, password, sender string, dryRun bool) *Client {
	c := NewClient(email, password)
	c.Sender = sender
	c.DryRun = dryRun
	return c
}

func (c *Client) login() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{
		"email":    {c.Email},
		"password": {c.Password},
	}
	resp, err := c.http.PostForm(c.BaseURL+"/auth/login", form)
	if err != nil {
		return "", fmt.Errorf("eskiz login request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("eskiz login failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	var ar authResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return "", fmt.Errorf("eskiz login parse: %w", err)
	}
	if ar.Data.Token == "" {
		return "", fmt.Errorf("eskiz login: empty token in response")
	}
	c.token = ar.Data.Token
	return c.token, nil
}

// SendSMS — отправка текста на номер. Телефон принимаем в +E.164,
// Eskiz хочет только цифры.
func (c *Client) SendSMS(to, text string) error {
	if c.DryRun || c.Email == "" || c.Email == "dry-run" {
		log.Printf("[sms][dry-run] to=%s sender=%q text=%q", to, c.Sender, text)
		return nil
	}
	return c.send(to, text, false)
}

func (c *Client) send(to, text string, retried bool) error {
	token, err := c.login()
	if err != nil {
		return err
	}

	form := url.Values{
		"mobile_phone": {strings.TrimPrefix(to, "+")},
		"message":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequest("POST", c.BaseURL+"/message/sms/send", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("[sms][send] to=%s status=%d body=%s", to, resp.StatusCode, string(body))

	// протухший токен — логинимся заново и повторяем один раз
	if resp.StatusCode == 401 && !retried {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return c.send(to, text, true)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("eskiz send failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var result sendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if result.Status == "error" {
		return fmt.Errorf("eskiz returned error: %s", result.Message)
	}
	return nil
}
