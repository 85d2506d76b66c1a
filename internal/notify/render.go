package notify

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

const paidText = `Hello,

We have received the payment for order {{.Order.ID}}.
Product: {{.Product.Name}}
Price: {{.Product.PriceText}}

The item will be sent to this email shortly.
`

const paidHTML = `<div style="font-family: system-ui, sans-serif; font-size: 14px; color: #0f172a;">
  <p>Hello,</p>
  <p>We have received the payment for order <strong>{{.Order.ID}}</strong>.</p>
  <table style="margin-top: 12px; border-collapse: collapse;">
    <tr><td style="padding: 4px 8px; color: #64748b;">Product</td><td style="padding: 4px 8px;"><strong>{{.Product.Name}}</strong></td></tr>
    <tr><td style="padding: 4px 8px; color: #64748b;">Price</td><td style="padding: 4px 8px;">{{.Product.PriceText}}</td></tr>
  </table>
  <p style="margin-top: 16px;">The item will be sent to this email shortly. Thank you for shopping at <strong>{{.Store}}</strong>.</p>
  <p style="margin-top: 24px; font-size: 12px; color: #94a3b8;">Order ID: {{.Order.ID}}<br/>Recipient Email: {{.Order.Email}}</p>
</div>
`

const deliveryText = `Hello,

Below are the items for your order {{.Order.ID}}:
Product: {{.Product.Name}}

{{range $i, $it := .Items}}#{{inc $i}} [{{$it.Type}}] {{$it.Value}}{{if $it.Note}} ({{$it.Note}}){{end}}
{{end}}
Please keep this information secure.
`

const deliveryHTML = `<div style="font-family: system-ui, sans-serif; font-size: 14px; color: #0f172a;">
  <p>Hello,</p>
  <p>Below are the items for your order <strong>{{.Order.ID}}</strong> (product: <strong>{{.Product.Name}}</strong>):</p>
  <table style="margin-top: 12px; border-collapse: collapse; width: 100%; max-width: 640px;">
    <thead>
      <tr style="background-color: #f1f5f9;">
        <th align="left" style="padding: 6px 8px;">#</th>
        <th align="left" style="padding: 6px 8px;">Item</th>
        <th align="left" style="padding: 6px 8px;">Note</th>
      </tr>
    </thead>
    <tbody>
{{- range $i, $it := .Items}}
      <tr>
        <td style="padding: 6px 8px;">{{inc $i}}</td>
        <td style="padding: 6px 8px;"><code>[{{$it.Type}}] {{$it.Value}}</code></td>
        <td style="padding: 6px 8px; color: #64748b;">{{if $it.Note}}{{$it.Note}}{{else}}-{{end}}</td>
      </tr>
{{- end}}
    </tbody>
  </table>
  <p style="margin-top: 16px;">Please keep this information secure. If there is an issue with the account or code, please reply to this email.</p>
  <p style="margin-top: 24px; font-size: 12px; color: #94a3b8;">Order ID: {{.Order.ID}}<br/>Recipient Email: {{.Order.Email}}</p>
</div>
`

var funcs = map[string]any{"inc": func(i int) int { return i + 1 }}

var (
	paidTextTpl     = texttpl.Must(texttpl.New("paid.txt").Funcs(funcs).Parse(paidText))
	paidHTMLTpl     = htmltpl.Must(htmltpl.New("paid.html").Funcs(funcs).Parse(paidHTML))
	deliveryTextTpl = texttpl.Must(texttpl.New("delivery.txt").Funcs(funcs).Parse(deliveryText))
	deliveryHTMLTpl = htmltpl.Must(htmltpl.New("delivery.html").Funcs(funcs).Parse(deliveryHTML))
)

type view struct {
	Store   string
	Order   OrderSummary
	Product ProductSummary
	Items   []ItemSummary
}

// Renderer 把订单信息渲染成邮件。
type Renderer struct {
	Store string
}

// Paid 支付成功邮件。
func (r Renderer) Paid(to string, o OrderSummary, p ProductSummary) (Message, error) {
	v := view{Store: r.Store, Order: o, Product: p}
	text, html, err := render(v, paidTextTpl, paidHTMLTpl)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] Payment successful for order %s", r.Store, o.ID),
		Text:    text,
		HTML:    html,
	}, nil
}

// Delivery 条目交付邮件。
func (r Renderer) Delivery(to string, o OrderSummary, p ProductSummary, items []ItemSummary) (Message, error) {
	v := view{Store: r.Store, Order: o, Product: p, Items: items}
	text, html, err := render(v, deliveryTextTpl, deliveryHTMLTpl)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] Delivery item for order %s", r.Store, o.ID),
		Text:    text,
		HTML:    html,
	}, nil
}

func render(v view, text *texttpl.Template, html *htmltpl.Template) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, v); err != nil {
		return "", "", fmt.Errorf("render %s: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, v); err != nil {
		return "", "", fmt.Errorf("render %s: %w", html.Name(), err)
	}
	return tb.String(), hb.String(), nil
}
