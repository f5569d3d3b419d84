package bot

import (
	"context"
	"strings"

	"pollbot/internal/eventbus"
	kit "pollbot/internal/transport"
	"pollbot/internal/transport/telegram/router"
	logx "pollbot/pkg/logx"
)

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) error {
	var cmds []router.Command
	if b.commands != nil {
		cmds = b.commands()
	} else {
		cmds = b.Commands()
	}
	_, err := renderStart(cmds).Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) cmdSetDays(ctx context.Context, req *router.Request) error {
	if err := b.dialogs.Start(ctx, req.Chat, req.FromID); err != nil {
		req.Logger.Warn("dialog start failed", logx.Err(err))
		return err
	}
	return nil
}

func (b *Bot) cmdListDays(ctx context.Context, req *router.Request) error {
	recs := b.store.Load(ctx)
	msg := renderList(recs, b.jobs.Jobs(b.now()), b.jobs.Location())
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) cmdRemoveDays(ctx context.Context, req *router.Request) error {
	if len(req.Args) > 0 {
		id := strings.TrimSpace(strings.Join(req.Args, " "))
		removed, err := b.remove(ctx, id, req.FromID)
		if err != nil {
			return req.Reply(ctx, "⚠️ Не удалось удалить: "+err.Error(), nil)
		}
		if !removed {
			return req.Reply(ctx, "Расписание «"+id+"» не найдено.", nil)
		}
		return req.Reply(ctx, "🗑 Расписание «"+id+"» удалено.", nil)
	}

	_, err := renderRemoveList(b.store.Load(ctx), b.log).Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) cmdStatus(ctx context.Context, req *router.Request) error {
	msg := renderStatus(b.jobs.Location(), b.jobs.Jobs(b.now()))
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) cbDialog(ctx context.Context, req *router.Request) error {
	toast, err := b.dialogs.HandleCallback(ctx, req.Chat, req.FromID, req.Payload)
	req.Toast = toast
	return err
}

func (b *Bot) cbRemove(ctx context.Context, req *router.Request) error {
	id := req.Payload
	removed, err := b.remove(ctx, id, req.FromID)
	switch {
	case err != nil:
		req.Toast = "Не удалось удалить"
		return err
	case removed:
		req.Toast = "Удалено: " + id
	default:
		req.Toast = "Уже удалено"
	}

	cb := req.Update.Callback
	if cb == nil {
		return nil
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	return renderRemoveList(b.store.Load(ctx), b.log).Edit(ctx, req.Adapter, ref)
}

func (b *Bot) onText(ctx context.Context, req *router.Request) error {
	_, err := b.dialogs.HandleText(ctx, req.Chat, req.FromID, req.Text)
	return err
}

// remove deletes id. It reports false when no such record exists.
func (b *Bot) remove(ctx context.Context, id string, userID int64) (bool, error) {
	if _, ok := b.store.Get(ctx, id); !ok {
		return false, nil
	}
	if err := b.store.ReplaceAll(ctx, id, nil); err != nil {
		b.log.Error("schedule remove failed", logx.String("id", id), logx.Err(err))
		return false, err
	}
	b.log.Info("schedule removed", logx.String("id", id), logx.Int64("user_id", userID))
	eventbus.Publish(b.bus, eventbus.ScheduleRemoved, eventbus.ScheduleInfo{RecordID: id, UserID: userID})
	return true, nil
}
