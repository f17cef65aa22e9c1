// Package cli implements the interactive register menu.
//
// The menu loop is the single thread of control: every mutation of the
// session, the outbox and the logs is serialized through it.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/marllondevsec/pandacell/internal/config"
	"github.com/marllondevsec/pandacell/internal/delivery"
	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/register"
	"github.com/marllondevsec/pandacell/internal/report"
	"github.com/marllondevsec/pandacell/internal/store"
)

// App wires the menu to the register and its collaborators.
type App struct {
	reg       *register.Register
	catalog   *store.Catalog
	agg       *report.Aggregator
	outbox    *store.Outbox
	email     *config.EmailConfig
	emailPath string
	storeName string
	state     *models.SessionState

	in  *bufio.Reader
	out io.Writer
}

// New builds the CLI app. email is shared with the dispatcher's config
// provider so reconfiguration takes effect without a restart.
func New(reg *register.Register, catalog *store.Catalog, agg *report.Aggregator,
	outbox *store.Outbox, email *config.EmailConfig, emailPath, storeName string,
	state *models.SessionState) *App {
	return &App{
		reg:       reg,
		catalog:   catalog,
		agg:       agg,
		outbox:    outbox,
		email:     email,
		emailPath: emailPath,
		storeName: storeName,
		state:     state,
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}
}

// Run executes the menu loop until the user quits.
func (a *App) Run(ctx context.Context) error {
	if !a.email.Configured() {
		fmt.Fprintln(a.out, "Email delivery is not configured yet.")
		a.configureEmails()
	}
	for {
		a.printMenu()
		switch a.readLine("Choice: ") {
		case "1":
			a.recordSale()
		case "2":
			a.showTotal()
		case "3":
			a.listSales()
		case "4":
			a.closeRegister(ctx)
		case "5":
			a.reopenSession()
		case "6":
			a.showSummary(func(t time.Time) (models.ReportSummary, error) { return a.agg.WeekToDate(t) })
		case "7":
			a.showSummary(func(t time.Time) (models.ReportSummary, error) { return a.agg.MonthToDate(t) })
		case "8":
			a.showPanel()
		case "9":
			a.configureEmails()
		case "10":
			a.setPassword()
		case "11":
			a.sendNow(ctx)
		case "12":
			a.manageOutbox(ctx)
		case "13":
			a.manageProducts()
		case "0":
			if a.confirmQuit() {
				fmt.Fprintln(a.out, "Bye.")
				return nil
			}
		default:
			fmt.Fprintln(a.out, "Invalid option.")
		}
	}
}

func (a *App) printMenu() {
	fmt.Fprintf(a.out, "\n--- %s register ---\n", a.storeName)
	if a.state != nil && a.state.IsOpen {
		fmt.Fprintf(a.out, "Session %s open | %d sales | total %s\n",
			a.state.SessionDate, a.state.SaleCount, models.Money(a.state.RunningTotal))
	} else {
		fmt.Fprintln(a.out, "No open session.")
	}
	fmt.Fprintf(a.out, "Sender: %s  Recipient: %s\n", orUnset(a.email.From), orUnset(a.email.To))
	fmt.Fprint(a.out, `-------------------------
 1) Record sale
 2) Show day total
 3) List sales
 4) Close register (emails the day log)
 5) Reopen a session
 6) Top sellers (week)
 7) Top sellers (month)
 8) Highlights panel
 9) Configure emails
10) Set/clear email password
11) Send day log now
12) Outbox (resend/cancel)
13) Manage products
 0) Quit
-------------------------
`)
}

func (a *App) recordSale() {
	name := a.readLine("Product: ")
	if name == "" {
		fmt.Fprintln(a.out, "Empty product, cancelled.")
		return
	}
	var suggested *decimal.Decimal
	var tracked bool
	if p, err := a.catalog.Find(name); err == nil {
		fmt.Fprintf(a.out, "Catalog match: %s\n", p.Name)
		name = p.Name
		if p.Price != nil {
			fmt.Fprintf(a.out, "Suggested price: %s (Enter to accept)\n", models.Money(*p.Price))
			suggested = p.Price
		}
		if p.Stock != nil {
			fmt.Fprintf(a.out, "Current stock: %s\n", models.Money(*p.Stock))
			tracked = true
		}
	}

	qty := decimal.NewFromInt(1)
	if raw := a.readLine("Quantity [1]: "); raw != "" {
		v, err := parseAmount(raw)
		if err != nil {
			fmt.Fprintln(a.out, "Invalid quantity, cancelled.")
			return
		}
		qty = v
	}
	var price decimal.Decimal
	if raw := a.readLine("Unit price: "); raw != "" {
		v, err := parseAmount(raw)
		if err != nil {
			fmt.Fprintln(a.out, "Invalid price, cancelled.")
			return
		}
		price = v
	} else if suggested != nil {
		price = *suggested
	} else {
		fmt.Fprintln(a.out, "No price given, cancelled.")
		return
	}

	rec := models.NewSaleRecord(name, qty, price)
	if err := a.reg.AddSale(a.state, rec); err != nil {
		fmt.Fprintf(a.out, "Sale NOT recorded: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Sale recorded: %s x%s, line total %s\n", name, models.Money(qty), models.Money(rec.LineTotal))

	if tracked && strings.EqualFold(a.readLine("Subtract quantity from catalog stock? (y/N): "), "y") {
		if err := a.catalog.AdjustStock(name, qty.Neg()); err != nil {
			fmt.Fprintf(a.out, "Stock not adjusted: %v\n", err)
		} else {
			fmt.Fprintln(a.out, "Stock adjusted.")
		}
	}
}

func (a *App) showTotal() {
	if a.state == nil {
		fmt.Fprintln(a.out, "No open session.")
		return
	}
	total, err := a.reg.TotalFor(a.state.SessionDate)
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Total for %s: %s\n", a.state.SessionDate, models.Money(total))
}

func (a *App) listSales() {
	if a.state == nil {
		fmt.Fprintln(a.out, "No open session.")
		return
	}
	recs, err := a.reg.Sales(a.state.SessionDate)
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No sales recorded yet.")
		return
	}
	for _, rec := range recs {
		fmt.Fprintln(a.out, store.FormatLine(rec))
	}
}

func (a *App) closeRegister(ctx context.Context) {
	if a.state == nil || !a.state.IsOpen {
		fmt.Fprintln(a.out, "No open session to close.")
		return
	}
	total, err := a.reg.TotalFor(a.state.SessionDate)
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Closing %s, day total %s.\n", a.state.SessionDate, models.Money(total))
	if !strings.EqualFold(a.readLine("Confirm close? (y/N): "), "y") {
		fmt.Fprintln(a.out, "Close cancelled.")
		return
	}
	if err := a.reg.Close(ctx, a.state.SessionDate, a.email.To); err != nil {
		fmt.Fprintf(a.out, "Close failed: %v\n", err)
		return
	}
	a.state = nil
	fmt.Fprintln(a.out, "Register closed. Day log queued for delivery.")
}

func (a *App) reopenSession() {
	date := a.readLine("Session date to reopen (YYYY-MM-DD) [today]: ")
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		fmt.Fprintln(a.out, "Invalid date.")
		return
	}
	state, err := a.reg.Open(date)
	if err != nil {
		fmt.Fprintf(a.out, "Reopen failed: %v\n", err)
		return
	}
	a.state = state
	fmt.Fprintf(a.out, "Session %s open.\n", date)
}

func (a *App) showSummary(summarize func(time.Time) (models.ReportSummary, error)) {
	s, err := summarize(time.Now())
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(a.out, report.Render(s))
}

func (a *App) showPanel() {
	const panelTop = 5
	now := time.Now()
	for _, part := range []struct {
		label string
		fn    func(time.Time) (models.ReportSummary, error)
	}{
		{"Top week", a.agg.WeekToDate},
		{"Top month", a.agg.MonthToDate},
	} {
		s, err := part.fn(now)
		if err != nil {
			fmt.Fprintf(a.out, "%s: error: %v\n", part.label, err)
			continue
		}
		fmt.Fprintf(a.out, "\n--- %s ---\n", part.label)
		rows := s.Top
		if len(rows) > panelTop {
			rows = rows[:panelTop]
		}
		if len(rows) == 0 {
			fmt.Fprintln(a.out, "No sales.")
		}
		for i, row := range rows {
			fmt.Fprintf(a.out, "%d. %s - qty %s - revenue %s\n", i+1, row.SKU, models.Money(row.Quantity), models.Money(row.Revenue))
		}
	}
}

func (a *App) configureEmails() {
	from := a.readLine(fmt.Sprintf("Register (sender) email [%s]: ", orUnset(a.email.From)))
	if from == "" {
		from = a.email.From
	}
	to := a.readLine(fmt.Sprintf("Store (recipient) email [%s]: ", orUnset(a.email.To)))
	if to == "" {
		to = a.email.To
	}
	if !config.ValidEmail(from) || !config.ValidEmail(to) {
		fmt.Fprintln(a.out, "Invalid email address, nothing saved.")
		return
	}
	host := a.readLine(fmt.Sprintf("SMTP server [%s]: ", a.email.SMTPHost))
	if host == "" {
		host = a.email.SMTPHost
	}
	port := a.email.SMTPPort
	if raw := a.readLine(fmt.Sprintf("SMTP port [%d]: ", port)); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &port); err != nil || port <= 0 {
			fmt.Fprintln(a.out, "Invalid port, nothing saved.")
			return
		}
	}
	a.email.From, a.email.To, a.email.SMTPHost, a.email.SMTPPort = from, to, host, port
	if err := config.SaveEmailConfig(a.emailPath, *a.email); err != nil {
		fmt.Fprintf(a.out, "Failed to save email config: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Email configuration saved.")
}

func (a *App) setPassword() {
	fmt.Fprintln(a.out, "Use an app password if your provider requires one (e.g. Gmail).")
	fmt.Fprint(a.out, "Password (empty to clear): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		fmt.Fprintf(a.out, "Could not read password: %v\n", err)
		return
	}
	if len(raw) == 0 {
		a.email.ClearPassword()
	} else {
		a.email.SetPassword(string(raw))
	}
	if err := config.SaveEmailConfig(a.emailPath, *a.email); err != nil {
		fmt.Fprintf(a.out, "Failed to save email config: %v\n", err)
		return
	}
	if a.email.HasPassword() {
		fmt.Fprintln(a.out, "Password saved (encoded).")
	} else {
		fmt.Fprintln(a.out, "Password cleared.")
	}
}

func (a *App) sendNow(ctx context.Context) {
	if a.state == nil {
		fmt.Fprintln(a.out, "No open session.")
		return
	}
	res, err := a.reg.SendNow(ctx, a.state.SessionDate, a.email.To)
	if err != nil {
		fmt.Fprintf(a.out, "Send failed: %v\n", err)
		return
	}
	a.reportDrain(res)
}

func (a *App) manageOutbox(ctx context.Context) {
	tasks, err := a.outbox.Pending()
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "Outbox is empty.")
		return
	}
	for _, t := range tasks {
		fmt.Fprintf(a.out, "%s  to=%s attempts=%d", t.TaskID, t.Recipient, t.AttemptCount)
		if t.LastError != "" {
			fmt.Fprintf(a.out, " last_error=%q", t.LastError)
		}
		fmt.Fprintln(a.out)
	}
	switch strings.ToLower(a.readLine("(r)esend all, (c)ancel one, Enter to go back: ")) {
	case "r":
		res, err := a.reg.Resend(ctx)
		if err != nil {
			fmt.Fprintf(a.out, "Resend failed: %v\n", err)
			return
		}
		a.reportDrain(res)
	case "c":
		id := a.readLine("Task id to cancel: ")
		if err := a.outbox.Cancel(id); err != nil {
			if errors.Is(err, models.ErrTaskNotFound) {
				fmt.Fprintln(a.out, "No such task.")
			} else {
				fmt.Fprintf(a.out, "Cancel failed: %v\n", err)
			}
			return
		}
		fmt.Fprintln(a.out, "Task cancelled.")
	}
}

func (a *App) manageProducts() {
	for {
		fmt.Fprint(a.out, `
=== Products ===
1) List
2) Add
3) Edit
4) Delete
5) Adjust stock
0) Back
`)
		switch a.readLine("Choice: ") {
		case "1":
			a.listProducts()
		case "2":
			a.addProduct()
		case "3":
			a.editProduct()
		case "4":
			a.deleteProduct()
		case "5":
			a.adjustStock()
		case "0":
			return
		default:
			fmt.Fprintln(a.out, "Invalid option.")
		}
	}
}

func (a *App) listProducts() {
	products, err := a.catalog.List()
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	if len(products) == 0 {
		fmt.Fprintln(a.out, "No products in the catalog.")
		return
	}
	fmt.Fprintln(a.out, "Name | Price | Stock")
	for _, p := range products {
		fmt.Fprintf(a.out, "%s | %s | %s\n", p.Name, moneyOrDash(p.Price), moneyOrDash(p.Stock))
	}
}

func (a *App) addProduct() {
	name := a.readLine("Product name: ")
	if name == "" {
		fmt.Fprintln(a.out, "Empty name, cancelled.")
		return
	}
	if _, err := a.catalog.Find(name); err == nil {
		fmt.Fprintln(a.out, "Product already exists, use edit.")
		return
	}
	p := models.Product{Name: name}
	p.Price = a.readOptionalAmount("Unit price [optional]: ")
	p.Stock = a.readOptionalAmount("Initial stock [optional]: ")
	if err := a.catalog.Put(p); err != nil {
		fmt.Fprintf(a.out, "Failed to save product: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Product added.")
}

func (a *App) editProduct() {
	name := a.readLine("Product to edit: ")
	p, err := a.catalog.Find(name)
	if err != nil {
		fmt.Fprintln(a.out, "Product not found.")
		return
	}
	oldName := p.Name
	if newName := a.readLine(fmt.Sprintf("New name [%s]: ", p.Name)); newName != "" {
		p.Name = newName
	}
	if v := a.readOptionalAmount(fmt.Sprintf("New price [%s]: ", moneyOrDash(p.Price))); v != nil {
		p.Price = v
	}
	if v := a.readOptionalAmount(fmt.Sprintf("New stock [%s]: ", moneyOrDash(p.Stock))); v != nil {
		p.Stock = v
	}
	if err := a.catalog.Rename(oldName, p); err != nil {
		fmt.Fprintf(a.out, "Failed to save product: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Product updated.")
}

func (a *App) deleteProduct() {
	name := a.readLine("Product to delete: ")
	p, err := a.catalog.Find(name)
	if err != nil {
		fmt.Fprintln(a.out, "Product not found.")
		return
	}
	if !strings.EqualFold(a.readLine(fmt.Sprintf("Delete %q? (y/N): ", p.Name)), "y") {
		fmt.Fprintln(a.out, "Cancelled.")
		return
	}
	if err := a.catalog.Delete(p.Name); err != nil {
		fmt.Fprintf(a.out, "Delete failed: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Product removed.")
}

func (a *App) adjustStock() {
	name := a.readLine("Product: ")
	p, err := a.catalog.Find(name)
	if err != nil {
		fmt.Fprintln(a.out, "Product not found.")
		return
	}
	fmt.Fprintf(a.out, "%s | current stock: %s\n", p.Name, moneyOrDash(p.Stock))
	raw := a.readLine("Delta (negative to remove): ")
	delta, err := parseAmount(raw)
	if err != nil {
		fmt.Fprintln(a.out, "Invalid amount.")
		return
	}
	if err := a.catalog.AdjustStock(p.Name, delta); err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			fmt.Fprintln(a.out, "Not enough stock for that adjustment.")
		} else {
			fmt.Fprintf(a.out, "Adjust failed: %v\n", err)
		}
		return
	}
	fmt.Fprintln(a.out, "Stock adjusted.")
}

func (a *App) confirmQuit() bool {
	if a.state != nil && a.state.IsOpen {
		return strings.EqualFold(a.readLine("A session is still OPEN. Quit without closing? (y/N): "), "y")
	}
	return true
}

func (a *App) reportDrain(res delivery.DrainResult) {
	fmt.Fprintf(a.out, "Delivered: %d, still pending: %d\n", len(res.Delivered), len(res.StillPending))
	for _, t := range res.StillPending {
		fmt.Fprintf(a.out, "  pending %s attempts=%d last_error=%q\n", t.TaskID, t.AttemptCount, t.LastError)
	}
}

func (a *App) readLine(prompt string) string {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

func (a *App) readOptionalAmount(prompt string) *decimal.Decimal {
	raw := a.readLine(prompt)
	if raw == "" {
		return nil
	}
	v, err := parseAmount(raw)
	if err != nil {
		fmt.Fprintln(a.out, "Invalid amount, ignored.")
		return nil
	}
	return &v
}

// parseAmount accepts plain decimals plus comma-as-decimal-separator input
// like "19,90" and "1.234,56".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

func orUnset(s string) string {
	if s == "" {
		return "<unset>"
	}
	return s
}

func moneyOrDash(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return models.Money(*d)
}
