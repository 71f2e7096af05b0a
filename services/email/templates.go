package email

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

const ReceiptSubject = "591搶案神器 訂閱付款成功"

var receiptHTML = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="zh-Hant">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.PlanName}}</title>
</head>
<body style="font-family: sans-serif; background: #f8fafc; padding: 24px;">
    <table role="presentation" width="100%" style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px;">
        <tr>
            <td style="padding: 32px;">
                <h2 style="margin-top: 0;">{{if .DisplayName}}{{.DisplayName}}，{{end}}感謝您的訂閱！</h2>
                <p>您的方案已升級為 <strong>{{.PlanName}}</strong>。</p>
                <table role="presentation" style="width: 100%; border-collapse: collapse;">
                    <tr><td>訂單編號</td><td style="text-align: right;">{{.MerchantTradeNo}}</td></tr>
                    <tr><td>金額</td><td style="text-align: right;">NT$ {{.Amount}}</td></tr>
                    <tr><td>付款時間</td><td style="text-align: right;">{{.PaidAt.Format "2006/01/02 15:04"}}</td></tr>
                </table>
                <p style="color: #64748b; font-size: 12px;">如有任何問題，請直接回覆此信件。</p>
            </td>
        </tr>
    </table>
</body>
</html>
`))

var receiptText = texttemplate.Must(texttemplate.New("receipt").Parse(`{{if .DisplayName}}{{.DisplayName}}，{{end}}感謝您的訂閱！

方案：{{.PlanName}}
訂單編號：{{.MerchantTradeNo}}
金額：NT$ {{.Amount}}
付款時間：{{.PaidAt.Format "2006/01/02 15:04"}}
`))

// RenderReceipt returns the HTML and plain-text bodies of a receipt email.
func RenderReceipt(r Receipt) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := receiptHTML.Execute(&htmlBuf, r); err != nil {
		return "", "", fmt.Errorf("failed to render receipt html: %w", err)
	}
	if err := receiptText.Execute(&textBuf, r); err != nil {
		return "", "", fmt.Errorf("failed to render receipt text: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
