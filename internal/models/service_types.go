package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ServiceTypeList is the set of transport services a forwarder offers
// (aérien, maritime, routier...). Entries are trimmed and unique,
// case-insensitively, in first-seen order.
type ServiceTypeList []string

func NewServiceTypeList(values []string) ServiceTypeList {
	out := make(ServiceTypeList, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// UnmarshalBSONValue also reads legacy profiles that stored the services as
// one comma separated string.
func (l *ServiceTypeList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*l = ServiceTypeList{}
		return nil
	case bsontype.Array:
		var values []string
		if err := bson.UnmarshalValue(t, data, &values); err != nil {
			return err
		}
		*l = NewServiceTypeList(values)
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		*l = NewServiceTypeList(strings.Split(value, ","))
		return nil
	default:
		return fmt.Errorf("typeServices: cannot decode %s", t)
	}
}

func (l ServiceTypeList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue([]string(NewServiceTypeList(l)))
}
