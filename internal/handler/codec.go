package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readBody returns a decoder over the request body, rejecting empty and
// oversized payloads.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	if len(body) == 0 {
		return nil, badRequest("request body is required")
	}
	return jx.DecodeBytes(body), nil
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeItem(e *jx.Encoder, it catalog.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
		e.Field("description", func(e *jx.Encoder) { e.Str(it.Description) })
	})
}

func encodeItems(e *jx.Encoder, items []catalog.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			encodeItem(e, it)
		}
	})
}

func encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
		e.Field("item_id", func(e *jx.Encoder) { e.Int64(l.ItemID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("item", func(e *jx.Encoder) { encodeItem(e, l.Item) })
	})
}

func encodeCart(e *jx.Encoder, lines []cart.Line) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			encodeCartLine(e, l)
		}
	})
}

func encodeCheckout(e *jx.Encoder, res *checkout.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(res.OrderID) })
		e.Field("total_amount", func(e *jx.Encoder) { encodeMoney(e, res.TotalAmount) })
		e.Field("discount_amount", func(e *jx.Encoder) { encodeMoney(e, res.DiscountAmount) })
		e.Field("final_amount", func(e *jx.Encoder) { encodeMoney(e, res.FinalAmount) })
		e.Field("discount_code", func(e *jx.Encoder) {
			if res.DiscountCode == nil {
				e.Null()
				return
			}
			e.Str(*res.DiscountCode)
		})
	})
}

func encodeCode(e *jx.Encoder, c discount.Code) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discount_percentage", func(e *jx.Encoder) { e.Num(jx.Num(c.Percentage.String())) })
		e.Field("is_used", func(e *jx.Encoder) { e.Bool(c.Used) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(c.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodeCodes(e *jx.Encoder, codes []discount.Code) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range codes {
			encodeCode(e, c)
		}
	})
}

func encodeStats(e *jx.Encoder, st *admin.Stats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_items_purchased", func(e *jx.Encoder) { e.Int64(st.TotalItemsPurchased) })
		e.Field("total_purchase_amount", func(e *jx.Encoder) { encodeMoney(e, st.TotalPurchaseAmount) })
		e.Field("discount_codes", func(e *jx.Encoder) { encodeCodes(e, st.DiscountCodes) })
		e.Field("total_discount_amount", func(e *jx.Encoder) { encodeMoney(e, st.TotalDiscountAmount) })
	})
}

func encodeMessage(e *jx.Encoder, msg string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
}

type createItemRequest struct {
	Name        string `validate:"required,max=255"`
	Price       decimal.Decimal
	Description string `validate:"max=2000"`
}

func (req *createItemRequest) Decode(d *jx.Decoder) error {
	var hasPrice bool
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			v, err := d.Str()
			req.Name = v
			return err
		case "price":
			v, err := decodeDecimal(d)
			req.Price, hasPrice = v, true
			return err
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			req.Description = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode item")
	}
	if !hasPrice {
		return errors.New("price is required")
	}
	return nil
}

type addToCartRequest struct {
	ItemID   int64 `validate:"gt=0"`
	Quantity int   `validate:"gte=1,lte=10000"`
}

func (req *addToCartRequest) Decode(d *jx.Decoder) error {
	req.Quantity = 1
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "item_id":
			v, err := d.Int64()
			req.ItemID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode cart line")
	}
	return nil
}

type checkoutRequest struct {
	UserID       string `validate:"required,max=128"`
	DiscountCode string `validate:"max=64"`
}

func (req *checkoutRequest) Decode(d *jx.Decoder) error {
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "user_id":
			v, err := d.Str()
			req.UserID = v
			return err
		case "discount_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			req.DiscountCode = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode checkout")
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
