package session

import "strconv"

const (
	languagesPerRow = 3
	choicesPerRow   = 2
	reasonsPerRow   = 2
)

func homeKeyboard(l Localization) [][]string {
	return [][]string{
		{l.Text("MENU_HOME_NEW_KEY"), l.Text("MENU_CHECK_STATUS")},
		{l.Text("MENU_HOME_INSTRUCTION"), l.Text("MENU_HOME_FAQ")},
		{l.Text("MENU_HOME_SUPPORT"), l.Text("MENU_HOME_CHANGE_LANGUAGE")},
		{l.Text("MENU_HOME_PRIVACY_POLICY"), l.Text("MENU_HOME_DELETE_ACCOUNT")},
	}
}

func optInKeyboard(l Localization) [][]string {
	return [][]string{{l.Text("MENU_PRIVACY_POLICY_CONFIRM"), l.Text("MENU_PRIVACY_POLICY_DECLINE")}}
}

func declinedKeyboard(l Localization) [][]string {
	return [][]string{{l.Text("MENU_BACK_PRIVACY_POLICY"), l.Text("MENU_HOME_CHANGE_LANGUAGE")}}
}

func backKeyboard(l Localization) [][]string {
	return [][]string{{l.Text("MENU_BACK_HOME")}}
}

func adminKeyboard(l Localization) [][]string {
	return [][]string{
		{l.Text("MENU_ADMIN_BAN_USER"), l.Text("MENU_ADMIN_UNBAN_USER")},
		{l.Text("MENU_BACK_HOME")},
	}
}

func choicesKeyboard(choices []int) [][]string {
	labels := make([]string, len(choices))
	for i, v := range choices {
		labels[i] = strconv.Itoa(v)
	}
	return chunk(labels, choicesPerRow)
}

// chunk lays labels out in rows of up to n.
func chunk(labels []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	rows := make([][]string, 0, (len(labels)+n-1)/n)
	for i := 0; i < len(labels); i += n {
		end := min(i+n, len(labels))
		rows = append(rows, append([]string(nil), labels[i:end]...))
	}
	return rows
}
