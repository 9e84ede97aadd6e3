package library

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"Melodex/logger"
)

// Watcher 监控所有已登记的文件夹根目录，文件系统事件去抖后自动触发一次同步。
// fsnotify 事件只作为提示：真正的脏判定仍由 ChangeDetector 负责，所以漏报
// 或重复的事件都无害。
type Watcher struct {
	ctrl     *Controller
	folders  FolderStore
	debounce time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(ctrl *Controller, folders FolderStore, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		ctrl:     ctrl,
		folders:  folders,
		debounce: debounce,
		stopChan: make(chan struct{}),
	}
}

// Start 启动监控循环
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	folders, err := w.folders.ListAll(ctx)
	if err != nil {
		watcher.Close()
		return err
	}
	for _, folder := range folders {
		if err := watcher.Add(folder.Path); err != nil {
			logger.Warn("cannot watch folder root",
				logger.String("path", folder.Path),
				logger.ErrorField(err),
			)
		}
	}
	logger.Info("library watcher started", logger.Int("roots", len(folders)))

	w.wg.Add(1)
	go w.loop(ctx, watcher)
	return nil
}

// Stop 停止监控并等待循环退出
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// 去抖：事件风暴只触发一次同步
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", logger.ErrorField(err))
		case <-timerC:
			timer = nil
			timerC = nil
			summary, err := w.ctrl.Sync(ctx, nil)
			if err == ErrSyncInProgress {
				// 当前已有同步在跑，变化会被下一轮检测捕获
				continue
			}
			if err != nil {
				logger.Error("auto sync failed", logger.ErrorField(err))
				continue
			}
			if !summary.Empty() {
				logger.Info("auto sync completed",
					logger.String("sessionId", summary.SessionID),
					logger.Int("foldersScanned", summary.FoldersScanned),
				)
			}
		}
	}
}
