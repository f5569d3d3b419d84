package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pollbot/internal/schedule"
	"pollbot/internal/task/scheduler"
	kit "pollbot/internal/transport"
	"pollbot/internal/transport/telegram/router"
	logx "pollbot/pkg/logx"
	"pollbot/pkg/tgui"
)

const greeting = "Привет! Я отправляю в группу еженедельные опросы о тренировках и напоминаю о них за 5 минут."

func renderStart(cmds []router.Command) tgui.Message {
	text := tgui.Esc(greeting).String() + "\n\n" + router.HelpText("Команды", cmds)
	return tgui.Message{Text: text, Opt: &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}}
}

func renderList(recs []schedule.Record, jobs []scheduler.JobInfo, loc *time.Location) tgui.Message {
	b := tgui.New().Title("📋", "Расписания опросов")
	if len(recs) == 0 {
		return b.Line("Расписаний пока нет. Добавьте: /set_days").Build()
	}

	next := map[string]time.Time{}
	for _, j := range jobs {
		if j.Kind == scheduler.KindPoll {
			next[j.RecordID] = j.Next
		}
	}

	for _, rec := range recs {
		rh, rm := scheduler.ReminderTime(rec.Hour, rec.Minute)
		b.Blank().
			RawLine(tgui.B(rec.SendDay.Name()+", "+rec.TimeLabel())).
			KV("Опрос на", rec.PollDay).
			KV("Напоминание", fmt.Sprintf("%02d:%02d", rh, rm)).
			KV("Вопрос", rec.Question()).
			KV("Варианты", strings.Join(rec.Options, schedule.OptionsSeparator+" "))
		if t, ok := next[rec.ID]; ok && !t.IsZero() {
			b.KV("Следующий", formatWhen(t, loc))
		}
		b.RawLine(tgui.I("id: " + rec.ID))
	}
	return b.Build()
}

func renderRemoveList(recs []schedule.Record, log logx.Logger) tgui.Message {
	b := tgui.New().Title("🗑", "Удаление расписаний")
	if len(recs) == 0 {
		return b.Line("Расписаний нет.").Build()
	}
	b.Line("Нажмите на расписание, чтобы удалить его:")

	kb := tgui.NewInline()
	for _, rec := range recs {
		data := tgui.Data(removePrefix, removeAction, rec.ID)
		if !tgui.Fits(data) {
			log.Warn("schedule id too long for a button", logx.String("id", rec.ID))
			continue
		}
		label := fmt.Sprintf("✖️ %s %s → %s", rec.SendDay.Short(), rec.TimeLabel(), rec.PollDay)
		kb.Row(tgui.Btn(tgui.TruncRunes(label, 60), data))
	}
	return b.Inline(kb).Build()
}

func renderStatus(loc *time.Location, jobs []scheduler.JobInfo) tgui.Message {
	b := tgui.New().
		Title("⚙️", "Планировщик").
		KV("Часовой пояс", loc.String()).
		KV("Заданий", strconv.Itoa(len(jobs)))
	if len(jobs) == 0 {
		return b.Build()
	}
	b.Blank()
	lines := make([]string, 0, len(jobs))
	for _, j := range jobs {
		lines = append(lines, j.Name+": "+formatWhen(j.Next, loc))
	}
	return b.Bullets(lines...).Build()
}

// formatWhen renders t as "Пт 16.10 18:00" in loc.
func formatWhen(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return shortDay(t.Weekday()) + " " + t.Format("02.01 15:04")
}

func shortDay(wd time.Weekday) string {
	for _, d := range schedule.Weekdays() {
		if d.Std() == wd {
			return d.Short()
		}
	}
	return wd.String()
}
