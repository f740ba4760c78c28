package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 24px; background-color: #f3f4f6; font-family: -apple-system, "Apple SD Gothic Neo", "Malgun Gothic", sans-serif; color: #111827; line-height: 1.5; }
    .container { max-width: 640px; margin: 0 auto; background: #ffffff; border-radius: 8px; border: 1px solid #e5e7eb; overflow: hidden; }
    .header { padding: 20px 24px; background: #1e3a8a; color: #ffffff; }
    .title { font-size: 18px; font-weight: 700; }
    .section { padding: 16px 24px; border-top: 1px solid #e5e7eb; }
    .label { color: #6b7280; width: 80px; display: inline-block; }
    .keyword { display: inline-block; margin: 2px 4px 2px 0; padding: 2px 8px; border-radius: 4px; background: #dbeafe; color: #1e40af; font-size: 12px; }
    .button { display: inline-block; padding: 10px 18px; border-radius: 6px; background: #2563eb; color: #ffffff; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div>{{.Recipient}}님, 새로운 입찰 공고가 등록되었습니다.</div>
      <div class="title">{{.Title}}</div>
    </div>
    <div class="section">
      <div><span class="label">발주처</span>{{.Agency}}</div>
      <div><span class="label">마감일</span>{{.Deadline}}</div>
      <div><span class="label">추정가</span>{{.Price}}</div>
      {{- if .Keywords}}
      <div><span class="label">키워드</span>{{range .Keywords}}<span class="keyword">{{.}}</span>{{end}}</div>
      {{- end}}
    </div>
    {{- if .Summary}}
    <div class="section">
      <strong>AI 요약</strong>
      <p>{{.Summary}}</p>
    </div>
    {{- end}}
    <div class="section">
      <a class="button" href="{{.URL}}">공고 보기</a>
    </div>
  </div>
</body>
</html>
`
