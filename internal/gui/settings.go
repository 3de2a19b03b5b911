//go:build !nogui

package gui

import (
	"strconv"

	"dcmview/internal/config"
	"dcmview/internal/errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const mib = 1024 * 1024

// settingsForm edits the cache section of the configuration
type settingsForm struct {
	budget        *widget.Entry
	purgeOnDelete *widget.Check
	purgeOnSelect *widget.Check
}

func newSettingsForm(cfg *config.Config) *settingsForm {
	f := &settingsForm{
		budget:        widget.NewEntry(),
		purgeOnDelete: widget.NewCheck("Purge cache after delete", nil),
		purgeOnSelect: widget.NewCheck("Purge cache after each selection", nil),
	}
	f.budget.SetText(strconv.FormatInt(cfg.Cache.MaxBytes/mib, 10))
	f.budget.Validator = func(s string) error {
		_, err := parseBudget(s)
		return err
	}
	f.purgeOnDelete.SetChecked(cfg.Cache.PurgeOnDelete)
	f.purgeOnSelect.SetChecked(cfg.Cache.PurgeOnSelect)
	return f
}

func parseBudget(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("enter a positive number of MiB")
	}
	return n * mib, nil
}

func (f *settingsForm) content() fyne.CanvasObject {
	return container.NewVBox(
		widget.NewForm(widget.NewFormItem("Cache budget (MiB)", f.budget)),
		f.purgeOnDelete,
		f.purgeOnSelect,
	)
}

// apply copies the form into cfg. Purge flags take effect for new sessions.
func (f *settingsForm) apply(cfg *config.Config) error {
	budget, err := parseBudget(f.budget.Text)
	if err != nil {
		return err
	}
	next := *cfg
	next.Cache.MaxBytes = budget
	next.Cache.PurgeOnDelete = f.purgeOnDelete.Checked
	next.Cache.PurgeOnSelect = f.purgeOnSelect.Checked
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

func (a *App) showSettings() {
	form := newSettingsForm(a.cfg)
	dialog.ShowCustomConfirm("Settings", "Save", "Cancel", form.content(), func(ok bool) {
		if !ok {
			return
		}
		if err := a.applySettings(form); err != nil {
			a.ShowError("Settings not saved", err)
		}
	}, a.mainWindow)
}

// applySettings validates the form, resizes the live cache and writes the
// configuration file when one was given
func (a *App) applySettings(form *settingsForm) error {
	if err := form.apply(a.cfg); err != nil {
		return err
	}
	a.sess.Cache.SetMaxBytes(a.cfg.Cache.MaxBytes)
	a.refresh()

	if a.cfgPath == "" {
		return nil
	}
	return config.SaveConfig(a.cfg, a.cfgPath)
}
