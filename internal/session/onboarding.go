package session

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/message"
)

func (t *turn) setLanguage(msg message.Message) {
	lang, ok := t.m.catalog.MatchLanguage(msg.Body)
	if !ok {
		t.sayKey("MSG_LANGUAGE_CHANGE_ERROR")
		t.languagePicker()
		return
	}
	t.useLanguage(lang)
	t.say(t.texts.Textf("MSG_LANGUAGE_CHANGED", strings.TrimSpace(msg.Body)))

	acc, err := t.m.accounts.GetAccount(t.ctx, t.uid)
	if err != nil {
		t.fail("language.account", err)
		return
	}
	if acc == nil || acc.Username == "" {
		t.askChallenge()
		return
	}
	t.home("MSG_HOME_ELSE")
}

// askChallenge issues a fresh challenge and moves to FirstCaptcha.
func (t *turn) askChallenge() {
	c, err := t.m.challenges.Issue(t.ctx, t.chat)
	if err != nil {
		t.fail("challenge.issue", err)
		return
	}
	prompt := fmt.Sprintf("%s\n%d + %d:", t.texts.Text("MSG_ASK_CAPTCHA"), c.A, c.B)
	t.keyboard(prompt, choicesKeyboard(c.Choices))
	t.moveTo(FirstCaptcha)
}

func (t *turn) firstCaptcha(msg message.Message) {
	passed := false
	answer, err := strconv.Atoi(strings.TrimSpace(msg.Body))
	if err != nil {
		logger.Info(t.ctx, logger.CompSession, "challenge.answer",
			slog.String("reject", "not_a_number"),
			slog.String("msg_type", string(msg.BodyType)),
		)
	} else {
		passed, err = t.m.challenges.Verify(t.ctx, t.chat, answer)
		if err != nil {
			logger.Error(t.ctx, logger.CompSession, "challenge.verify", slog.String("status", "fail"), logger.Err(err))
			passed = false
		}
	}

	if !passed {
		t.sayKey("MSG_WRONG_CAPTCHA")
		t.askChallenge()
		return
	}

	if link := t.m.cfg.TermsURL[t.lang]; link != "" {
		t.say(t.texts.Textf("MSG_TERMS_OF_SERVICE", link))
	}
	if link := t.m.cfg.PrivacyURL[t.lang]; link != "" {
		t.say(t.texts.Textf("MSG_PRIVACY_POLICY", link))
	}
	t.showOptIn()
}

func (t *turn) showOptIn() {
	t.keyboard(t.texts.Text("MSG_OPT_IN"), optInKeyboard(t.texts))
	t.moveTo(OptIn)
}

func (t *turn) optIn(msg message.Message) {
	if msg.Body != t.texts.Text("MENU_PRIVACY_POLICY_CONFIRM") {
		t.keyboard(t.texts.Text("MSG_PRIVACY_POLICY_DECLINE"), declinedKeyboard(t.texts))
		t.moveTo(OptInDeclined)
		return
	}
	if err := t.m.accounts.CreateAccount(t.ctx, t.uid, t.chat, t.m.cfg.Channel); err != nil {
		t.fail("account.create", err)
		return
	}
	logger.Info(t.ctx, logger.CompSession, "account.registered", slog.String("status", "ok"))
	t.home("MSG_HOME")
}

func (t *turn) optInDeclined(msg message.Message) {
	switch msg.Body {
	case t.texts.Text("MENU_BACK_PRIVACY_POLICY"):
		t.showOptIn()
	case t.texts.Text("MENU_HOME_CHANGE_LANGUAGE"):
		t.languagePicker()
	}
}
