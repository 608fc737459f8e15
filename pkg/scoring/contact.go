package scoring

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ContactQuestionNumber 联系方式固定为第 1 题
const ContactQuestionNumber = 1

// Contact 从第 1 题提取的联系人信息
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Title   string `json:"title"`
}

// IsEmpty 所有字段均为空
func (c Contact) IsEmpty() bool {
	return c == Contact{}
}

// ExtractContact 读取第 1 题的键值结构；缺失或格式不对时返回空值而非错误，由下游校验
func ExtractContact(responses []Response) Contact {
	for _, r := range responses {
		if r.QuestionNumber != ContactQuestionNumber {
			continue
		}
		if len(r.Answer) == 0 || !gjson.ValidBytes(r.Answer) {
			return Contact{}
		}
		answer := gjson.ParseBytes(r.Answer)
		if !answer.IsObject() {
			return Contact{}
		}
		return Contact{
			Name:    field(answer, "name"),
			Email:   field(answer, "email"),
			Company: field(answer, "company"),
			Phone:   field(answer, "phone"),
			Title:   field(answer, "title"),
		}
	}
	return Contact{}
}

func field(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.String())
}
