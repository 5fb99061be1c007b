package message

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse normalizes upd. It returns a *Rejection when the update is malformed or of a kind
// the bot does not serve. Kinds are probed in a fixed order and the first present wins.
// Lang is the sender's client language when it is one of languages, else defaultLang.
func Parse(upd *tele.Update, defaultLang string, languages ...string) (Message, error) {
	if upd == nil {
		return Message{}, malformed("nil update")
	}

	var (
		msg Message
		err error
	)
	switch {
	case upd.Message != nil:
		msg, err = fromChatMessage(TypeMessage, upd.Message)
	case upd.Query != nil:
		msg, err = fromInlineQuery(upd.Query)
	case upd.EditedMessage != nil:
		msg, err = fromChatMessage(TypeEditedMessage, upd.EditedMessage)
	case upd.Callback != nil:
		msg, err = fromCallback(upd.Callback)
	case upd.MyChatMember != nil:
		msg, err = fromMemberUpdate(upd.MyChatMember)
	case upd.ChannelPost != nil:
		msg, err = fromChannelPost(TypeChannelPost, upd.ChannelPost)
	case upd.EditedChannelPost != nil:
		msg, err = fromChannelPost(TypeEditedChannelPost, upd.EditedChannelPost)
	case upd.InlineResult != nil:
		return Message{}, unsupported("chosen_inline_result")
	case upd.ShippingQuery != nil:
		return Message{}, unsupported("shipping_query")
	case upd.PreCheckoutQuery != nil:
		return Message{}, unsupported("pre_checkout_query")
	case upd.Poll != nil:
		return Message{}, unsupported("poll")
	case upd.PollAnswer != nil:
		return Message{}, unsupported("poll_answer")
	case upd.ChatMember != nil:
		return Message{}, unsupported("chat_member")
	case upd.ChatJoinRequest != nil:
		return Message{}, unsupported("chat_join_request")
	default:
		return Message{}, unsupported("unknown update kind")
	}
	if err != nil {
		return Message{}, err
	}

	msg.UpdateID = upd.ID
	if msg.Lang == "" || !contains(languages, msg.Lang) {
		msg.Lang = defaultLang
	}
	parseCommand(&msg)
	return msg, nil
}

func fromChatMessage(typ Type, m *tele.Message) (Message, error) {
	if m.Chat == nil {
		return Message{}, malformed("%s without chat", typ)
	}
	if err := checkChatType(m.Chat); err != nil {
		return Message{}, err
	}
	if m.Sender == nil {
		return Message{}, malformed("%s without sender", typ)
	}
	msg := Message{
		Type:   typ,
		ChatID: m.Chat.ID,
		Date:   m.Unixtime,
	}
	applySender(&msg, m.Sender)
	fillBody(&msg, m)
	return msg, nil
}

func fromInlineQuery(q *tele.Query) (Message, error) {
	if q.Sender == nil {
		return Message{}, malformed("inline query without sender")
	}
	msg := Message{
		Type:     TypeInline,
		ChatID:   q.Sender.ID,
		Body:     q.Text,
		BodyType: BodyText,
		QueryID:  q.ID,
	}
	applySender(&msg, q.Sender)
	return msg, nil
}

func fromCallback(cb *tele.Callback) (Message, error) {
	if cb.Sender == nil {
		return Message{}, malformed("callback without sender")
	}
	msg := Message{
		Type:       TypeCallback,
		ChatID:     cb.Sender.ID,
		Body:       cb.Data,
		BodyType:   BodyText,
		CallbackID: cb.ID,
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		if err := checkChatType(cb.Message.Chat); err != nil {
			return Message{}, err
		}
		msg.ChatID = cb.Message.Chat.ID
		msg.Date = cb.Message.Unixtime
	}
	applySender(&msg, cb.Sender)
	return msg, nil
}

func fromMemberUpdate(u *tele.ChatMemberUpdate) (Message, error) {
	if u.Sender == nil {
		return Message{}, malformed("member update without sender")
	}
	if u.NewChatMember == nil {
		return Message{}, malformed("member update without new status")
	}
	status := string(u.NewChatMember.Role)
	msg := Message{
		Type:         TypeMemberUpdate,
		BodyType:     BodyText,
		MemberStatus: status,
		Date:         u.Unixtime,
	}
	applySender(&msg, u.Sender)
	return msg, nil
}

func fromChannelPost(typ Type, m *tele.Message) (Message, error) {
	if m.SenderChat == nil {
		return Message{}, malformed("%s without sender chat", typ)
	}
	msg := Message{
		Type:    typ,
		UserUID: strconv.FormatInt(m.SenderChat.ID, 10),
		Date:    m.Unixtime,
	}
	fillBody(&msg, m)
	return msg, nil
}

// checkChatType accepts private one-to-one chats only.
func checkChatType(chat *tele.Chat) error {
	switch chat.Type {
	case tele.ChatGroup, tele.ChatSuperGroup, tele.ChatChannel:
		return malformed("chat type %q is not served", chat.Type)
	}
	return nil
}

func applySender(msg *Message, u *tele.User) {
	msg.UserUID = strconv.FormatInt(u.ID, 10)
	msg.Username = u.Username
	msg.Lang = strings.ToLower(u.LanguageCode)
}

// fillBody picks the first present payload: text, document, location, photo, voice.
// Only text and document carry a body; the other kinds keep theirs in dedicated fields.
func fillBody(msg *Message, m *tele.Message) {
	switch {
	case m.Text != "":
		msg.Body, msg.BodyType = m.Text, BodyText
	case m.Document != nil:
		msg.Body, msg.BodyType = m.Document.FileID, BodyDocument
		msg.Document = &Document{FileID: m.Document.FileID, MIME: m.Document.MIME}
	case m.Location != nil:
		msg.BodyType = BodyLocation
		msg.Location = &Location{Lat: float64(m.Location.Lat), Lon: float64(m.Location.Lng)}
	case m.Photo != nil:
		msg.BodyType = BodyPhoto
		msg.PhotoID = m.Photo.FileID
	case m.Voice != nil:
		msg.BodyType = BodyVoice
		msg.VoiceID = m.Voice.FileID
	default:
		msg.Body, msg.BodyType = "", BodyUnknown
	}
}

// parseCommand splits "/cmd@bot arg..." into a lowercase command and its argument.
func parseCommand(msg *Message) {
	if msg.BodyType != BodyText || !strings.HasPrefix(msg.Body, "/") {
		return
	}
	rest := msg.Body[1:]
	cmd, arg, _ := strings.Cut(rest, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	msg.Command = strings.ToLower(cmd)
	msg.CommandArg = strings.TrimSpace(arg)
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
