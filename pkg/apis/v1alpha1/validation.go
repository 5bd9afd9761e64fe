/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var structValidator = validator.New()

// Validate reports every configuration error in spec, aggregated with
// multierr rather than failing on the first one, so a caller sees the full
// picture in a single construction attempt.
func (s *ServiceSpec) Validate() error {
	var errs error
	if err := structValidator.Struct(s); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "validating service spec"))
	}
	if s.MaxReplicas < s.MinReplicas {
		errs = multierr.Append(errs, fmt.Errorf("maxReplicas (%d) must be >= minReplicas (%d)", s.MaxReplicas, s.MinReplicas))
	}
	return errs
}
