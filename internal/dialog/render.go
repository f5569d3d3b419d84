package dialog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pollbot/internal/schedule"
	"pollbot/internal/task/scheduler"
	"pollbot/pkg/tgui"
)

type buttonFunc func(label string, tr Transition) tele.Btn

func renderPrompt(s *Session, problem error, btn buttonFunc) tgui.Message {
	st := s.State()
	b := tgui.New().Title("🗓", "Новое расписание опроса")
	summary(b, s)

	kb := tgui.NewInline()
	tr := func(k Kind) Transition { return Transition{Session: s.ID, Kind: k} }

	switch st {
	case StateSendDay:
		b.Line("В какой день отправлять опрос?")
		days := schedule.Weekdays()
		btns := make([]tele.Btn, 0, len(days))
		for _, d := range days {
			t := tr(KindSendDay)
			t.SendDay = d
			btns = append(btns, btn(d.Short(), t))
		}
		kb.Grid(4, btns...)

	case StatePollDay:
		b.Line("На какой день опрос?")
		days := schedule.Weekdays()
		btns := make([]tele.Btn, 0, len(days))
		for _, d := range days {
			t := tr(KindPollDay)
			t.PollDay = d.Name()
			btns = append(btns, btn(d.Name(), t))
		}
		kb.Grid(2, btns...)

	case StateHour:
		b.Line("Во сколько отправлять? Выберите час:")
		hours := s.policy.Hours()
		btns := make([]tele.Btn, 0, len(hours))
		for _, h := range hours {
			t := tr(KindHour)
			t.Hour = h
			btns = append(btns, btn(fmt.Sprintf("%02d", h), t))
		}
		kb.Grid(4, btns...)

	case StateMinute:
		b.Line(fmt.Sprintf("Выберите минуты (час: %02d):", s.Hour))
		mins := s.policy.Minutes()
		btns := make([]tele.Btn, 0, len(mins))
		for _, m := range mins {
			t := tr(KindMinute)
			t.Minute = m
			btns = append(btns, btn(fmt.Sprintf("%02d:%02d", s.Hour, m), t))
		}
		kb.Grid(4, btns...)
		kb.Row(btn("🕐 Сменить час", tr(KindChangeHour)))

	case StateTitle:
		b.Line("Отправьте заголовок опроса сообщением.")
		b.Italic("Например: Сквош в субботу?")
		kb.Row(btn("Без заголовка: "+schedule.DefaultQuestion(s.PollDay), tr(KindDefaultTitle)))

	case StateOptions:
		b.Line("Отправьте варианты ответа через «" + schedule.OptionsSeparator + "».")
		b.Italic("Например: Да; Нет; Резерв")
		kb.Row(btn("Стандартные: "+strings.Join(schedule.DefaultOptions(), schedule.OptionsSeparator+" "), tr(KindDefaultOpts)))
	}

	if problem != nil {
		b.Blank().Italic("⚠️ " + problemText(problem))
	}

	nav := []tele.Btn{}
	if st != StateSendDay {
		nav = append(nav, btn("⬅️ Назад", tr(KindBack)), btn("🔄 Заново", tr(KindRestart)))
	}
	nav = append(nav, btn("✖️ Отмена", tr(KindCancel)))
	kb.Row(nav...)

	return b.Inline(kb).Build()
}

// summary lists the answers given before the current step.
func summary(b *tgui.Builder, s *Session) {
	idx := s.State().index()
	if idx <= 0 {
		return
	}
	b.KV("Отправка", s.SendDay.Name())
	if idx > 1 {
		b.KV("Опрос на", s.PollDay)
	}
	if idx > 3 {
		b.KV("Время", fmt.Sprintf("%02d:%02d", s.Hour, s.Minute))
	} else if idx > 2 {
		b.KV("Час", strconv.Itoa(s.Hour))
	}
	if idx > 4 {
		b.KV("Заголовок", s.Title)
	}
	b.Blank()
}

func renderCommitted(rec schedule.Record) tgui.Message {
	rh, rm := scheduler.ReminderTime(rec.Hour, rec.Minute)
	return tgui.New().
		Title("✅", "Расписание сохранено").
		KV("Отправка", rec.SendDay.Name()+", "+rec.TimeLabel()).
		KV("Напоминание", fmt.Sprintf("%02d:%02d", rh, rm)).
		KV("Опрос на", rec.PollDay).
		KV("Вопрос", rec.Question()).
		Blank().
		Line("Варианты:").
		Bullets(rec.Options...).
		Build()
}

func renderCancelled() tgui.Message {
	return tgui.New().Title("✖️", "Настройка отменена").Build()
}

func renderFailed(err error) tgui.Message {
	return tgui.New().
		Title("⚠️", "Не удалось сохранить расписание").
		Italic(err.Error()).
		Build()
}

func problemText(err error) string {
	switch {
	case errors.Is(err, schedule.ErrEmptyTitle):
		return "Заголовок не может быть пустым или «-». Попробуйте ещё раз."
	case errors.Is(err, schedule.ErrTooFewOptions):
		return "Нужно минимум два варианта, разделённых «" + schedule.OptionsSeparator + "». Попробуйте ещё раз."
	default:
		return err.Error()
	}
}
