package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/observability"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/template"
)

// catalogPageSize is the number of products per catalog page.
const catalogPageSize = 8

// Catalog callback tags.
const (
	tagCatalogProduct = "catalog_product_"
	tagCatalogPrev    = "catalog_prev"
	tagCatalogNext    = "catalog_next"
)

// product is one parsed catalog entry. Price stays textual until a
// selection binds it numerically.
type product struct {
	name        string
	price       string
	description string
}

// catalogPageVar is the per-node session variable holding the current
// page, so two catalogs in one flow page independently.
func catalogPageVar(nodeID string) string {
	return "_catalog_page_" + nodeID
}

// parseProducts decodes the configured product list. Malformed data
// yields an empty catalog rather than an error.
func parseProducts(logger *slog.Logger, source flowbot.CatalogSource, raw string) []product {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	switch source {
	case flowbot.CatalogCSV:
		// First line is the header.
		lines := strings.Split(strings.TrimSpace(raw), "\n")
		var products []product
		for _, line := range lines[1:] {
			parts := strings.Split(line, ",")
			if len(parts) < 2 {
				continue
			}
			p := product{
				name:  strings.TrimSpace(parts[0]),
				price: strings.TrimSpace(parts[1]),
			}
			if len(parts) > 2 {
				p.description = strings.TrimSpace(parts[2])
			}
			products = append(products, p)
		}
		return products

	default: // json
		var entries []map[string]any
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			if logger != nil {
				logger.Warn("catalog data malformed, treating as empty",
					slog.String("error", err.Error()))
			}
			return nil
		}
		products := make([]product, 0, len(entries))
		for _, entry := range entries {
			products = append(products, product{
				name:        template.FormatValue(entry["name"]),
				price:       template.FormatValue(entry["price"]),
				description: template.FormatValue(entry["description"]),
			})
		}
		return products
	}
}

// renderCatalogPage builds the page text and buttons. Product buttons use
// global 1-based indices so selections stay stable across pages.
func renderCatalogPage(products []product, page int) (string, []Button) {
	totalPages := (len(products) + catalogPageSize - 1) / catalogPageSize
	start := (page - 1) * catalogPageSize
	end := min(start+catalogPageSize, len(products))

	buttons := make([]Button, 0, catalogPageSize+2)
	for i, p := range products[start:end] {
		name := p.name
		if name == "" {
			name = "Товар"
		}
		price := p.price
		if price == "" {
			price = "?"
		}
		buttons = append(buttons, Button{
			Label:    fmt.Sprintf("%s - %s руб", name, price),
			Callback: fmt.Sprintf("%s%d", tagCatalogProduct, start+i+1),
		})
	}
	if page > 1 {
		buttons = append(buttons, Button{Label: "← Назад", Callback: tagCatalogPrev})
	}
	if page < totalPages {
		buttons = append(buttons, Button{Label: "Далее →", Callback: tagCatalogNext})
	}
	text := fmt.Sprintf("📋 Каталог товаров (стр. %d/%d)", page, totalPages)
	return text, buttons
}

// executeCatalog parses and shows the first page, then suspends on its
// buttons. An empty catalog reports itself and continues.
func (e *Engine) executeCatalog(ctx context.Context, sess *Session, node *flowbot.ProgramNode, cfg *flowbot.CatalogConfig) (string, bool, error) {
	products := parseProducts(e.logger, cfg.Source, cfg.Products)
	if len(products) == 0 {
		e.send(ctx, sess, node.ID, "📋 Каталог пуст")
		return node.NextDefault(), false, nil
	}
	sess.catalogs[node.ID] = products
	sess.vars[catalogPageVar(node.ID)] = 1

	text, buttons := renderCatalogPage(products, 1)
	if err := e.transport.SendInline(ctx, sess.ID, text, buttons); err != nil {
		observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
	}
	sess.waiting = &waitCallback{nodeID: node.ID}
	return "", true, nil
}

// resumeCatalog routes catalog callbacks: product selection binds the
// product variables and continues, prev/next redraw the page in place.
func (e *Engine) resumeCatalog(ctx context.Context, sess *Session, node *flowbot.ProgramNode, tag string) error {
	products := sess.catalogs[node.ID]

	switch {
	case strings.HasPrefix(tag, tagCatalogProduct):
		idx, err := strconv.Atoi(strings.TrimPrefix(tag, tagCatalogProduct))
		if err != nil || idx < 1 || idx > len(products) {
			e.logger.Debug("catalog selection out of range",
				slog.String("session_id", sess.ID),
				slog.String("tag", tag))
			return nil
		}
		p := products[idx-1]
		sess.vars["product_name"] = p.name
		price, ok := expr.ToFloat64(p.price)
		if !ok && p.price != "" {
			e.logger.Warn("product price not numeric, binding zero",
				slog.String("session_id", sess.ID),
				slog.String("node_id", node.ID),
				slog.String("price", p.price))
		}
		sess.vars["product_price"] = price
		sess.vars["product_description"] = p.description
		sess.waiting = nil
		return e.run(ctx, sess, node.NextDefault())

	case tag == tagCatalogPrev, tag == tagCatalogNext:
		pageVar := catalogPageVar(node.ID)
		page := 1
		if f, ok := expr.ToFloat64(sess.vars[pageVar]); ok {
			page = int(f)
		}
		if tag == tagCatalogPrev {
			page--
		} else {
			page++
		}
		totalPages := (len(products) + catalogPageSize - 1) / catalogPageSize
		if page < 1 {
			page = 1
		}
		if page > totalPages {
			page = totalPages
		}
		sess.vars[pageVar] = page

		text, buttons := renderCatalogPage(products, page)
		if err := e.transport.SendInline(ctx, sess.ID, text, buttons); err != nil {
			observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
		}
		return nil

	default:
		e.logger.Debug("callback tag ignored",
			slog.String("session_id", sess.ID),
			slog.String("node_id", node.ID),
			slog.String("tag", tag))
		return nil
	}
}
