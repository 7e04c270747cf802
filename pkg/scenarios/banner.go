package scenarios

import (
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/runner"
)

// SalePath is the shop URL that puts the sale banner over the page.
const SalePath = "/?sale=1"

// SaleBannerSuite checks the overlay handlers: with them the sale banner is
// dismissed before the test touches the page, without them it stays up.
func SaleBannerSuite() runner.Suite {
	return runner.Suite{
		Name: "Sale banner handling",
		Tests: []runner.Test{
			{Title: "banner appears and is auto-closed via locator handler", Fn: bannerAutoClosed},
			{
				Title:             "with handlers disabled" + runner.TitleSeparator + "banner stays visible when handlers are disabled",
				Fn:                bannerStaysVisible,
				NoOverlayHandlers: true,
			},
		},
	}
}

func bannerAutoClosed(t *runner.T) error {
	if err := t.Page.Goto(SalePath); err != nil {
		return err
	}
	// Handlers run before actions, so interact with the form first.
	if err := t.Page.Click(pages.SelUsername); err != nil {
		return err
	}
	return t.Page.WaitFor(browser.SaleBannerSelector, browser.StateHidden, pages.DefaultAssertTimeout)
}

func bannerStaysVisible(t *runner.T) error {
	if err := t.Page.Goto(SalePath); err != nil {
		return err
	}
	if err := t.Page.WaitFor(browser.SaleBannerSelector, browser.StateVisible, pages.DefaultAssertTimeout); err != nil {
		return err
	}
	if err := t.Page.Click("body"); err != nil {
		return err
	}
	visible, err := t.Page.IsVisible(browser.SaleBannerSelector)
	if err != nil {
		return err
	}
	return check(visible, "sale banner was dismissed although handlers are disabled")
}
