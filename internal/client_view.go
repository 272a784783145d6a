package internal

import (
	"fmt"
	"strings"
)

func (model *TUIModel) View() string {
	var view string
	switch model.mode {
	case modeMenu:
		view = model.viewMenu()
	case modeUserPrompt, modePassPrompt:
		view = model.viewPrompt()
	case modeRoster:
		view = model.viewRoster()
	case modeChat:
		view = model.viewChat()
	}
	if notices := model.viewNotices(); notices != "" {
		view += "\n" + notices
	}
	return view + "\n"
}

func (model *TUIModel) viewMenu() string {
	var b strings.Builder
	b.WriteString(appTitleStyle.Render("chatter"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("talk to people from your terminal"))

	items := []string{
		menuHotkeyStyle.Render("1") + menuItemStyle.Render(" login"),
		menuHotkeyStyle.Render("2") + menuItemStyle.Render(" sign up"),
		menuHotkeyStyle.Render("3") + menuItemStyle.Render(" quit"),
	}
	b.WriteString("\n")
	b.WriteString(menuBoxStyle.Render(strings.Join(items, "\n")))
	b.WriteString("\n")
	b.WriteString(menuHintStyle.Render("press a number, or q to quit"))
	return b.String()
}

func (model *TUIModel) viewPrompt() string {
	var b strings.Builder
	b.WriteString(appTitleStyle.Render("chatter"))
	b.WriteString("\n")
	label := "username"
	if model.mode == modePassPrompt {
		label = "password"
	}
	action := "login"
	if model.pendingAuth == authSignup {
		action = "sign up"
	}
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s: enter your %s", action, label)))
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(model.textInput.View()))
	b.WriteString("\n")
	b.WriteString(menuHintStyle.Render("enter to confirm, esc to go back"))
	return b.String()
}

func (model *TUIModel) viewRoster() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("people"))
	b.WriteString("\n")

	if len(model.roster) == 0 {
		b.WriteString(boxStyle.Render(systemStyle.Render("nobody here yet, press r to refresh")))
	} else {
		var rows []string
		for i, friend := range model.roster {
			dot := offlineDotStyle.Render("●")
			if model.online[friend.ID] {
				dot = onlineDotStyle.Render("●")
			}
			name := bodyStyle.Render("  " + friend.Username)
			if i == model.rosterIndex {
				name = selectedStyle.Render("> " + friend.Username)
			}
			rows = append(rows, dot+" "+name)
		}
		b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	}
	b.WriteString("\n")
	b.WriteString(model.viewConnStatus())
	b.WriteString("\n")
	b.WriteString(menuHintStyle.Render("up/down to move, enter to chat, r to refresh, q to quit"))
	return b.String()
}

func (model *TUIModel) viewChat() string {
	var b strings.Builder
	peerName := ""
	presence := ""
	if model.selected != nil {
		peerName = model.selected.Username
		if model.online[model.selected.ID] {
			presence = onlineDotStyle.Render(" ● online")
		} else {
			presence = offlineDotStyle.Render(" ● offline")
		}
	}
	b.WriteString(headerStyle.Render(peerName) + presence)
	b.WriteString("\n")

	if len(model.transcript) == 0 {
		b.WriteString(boxStyle.Render(systemStyle.Render("no messages yet, say hi")))
	} else {
		var rows []string
		for _, msg := range model.transcript {
			rows = append(rows, model.renderMessage(msg))
		}
		b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	}
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(model.textInput.View()))
	b.WriteString("\n")
	b.WriteString(model.viewConnStatus())
	b.WriteString("\n")
	b.WriteString(menuHintStyle.Render("enter to send, /image <path> to share a picture, esc for roster"))
	return b.String()
}

func (model *TUIModel) renderMessage(msg Message) string {
	stamp := timestampStyle.Render(msg.CreatedAt.Local().Format("15:04"))
	name := usernameStyle.Render(model.nameFor(msg.SenderID))
	if msg.SenderID == model.userID {
		name = activeUserStyle.Render(model.username)
	}
	body := bodyStyle.Render(msg.Text)
	if msg.Image != "" {
		tag := imageTagStyle.Render("[image] " + msg.Image)
		if msg.Text == "" {
			body = tag
		} else {
			body += " " + tag
		}
	}
	return stamp + dividerStyle + name + " " + body
}

func (model *TUIModel) nameFor(userID int64) string {
	if userID == model.userID {
		return model.username
	}
	for _, friend := range model.roster {
		if friend.ID == userID {
			return friend.Username
		}
	}
	return fmt.Sprintf("user %d", userID)
}

func (model *TUIModel) viewConnStatus() string {
	switch {
	case model.isConnected:
		return connectedStyle.Render("connected")
	case model.connectionError != nil:
		return errorStyle.Render("offline: " + model.connectionError.Error())
	default:
		return connectingStyle.Render("connecting...")
	}
}

func (model *TUIModel) viewNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	var rows []string
	for _, notice := range model.notices {
		rows = append(rows, systemStyle.Render(notice))
	}
	return noticeBoxStyle.Render(strings.Join(rows, "\n"))
}
